package inventory

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallycam/tallycam-go/internal/conf"
	"github.com/tallycam/tallycam-go/internal/errors"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := NewStore(conf.InventorySettings{
		Path:      filepath.Join(dir, "inventory.json"),
		PhotoPath: filepath.Join(dir, "photos"),
	}, nil)
	require.NoError(t, err)
	return s
}

func TestAddItemCreates(t *testing.T) {
	s := testStore(t)

	item, created, err := s.AddItem(Incoming{Name: "Red Mug", Color: "red", Photo: []byte{0xff, 0xd8}})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, item.ID)
	assert.Equal(t, 1, item.Quantity)
	require.Len(t, item.Photos, 1)
	assert.FileExists(t, s.PhotoPath(item.Photos[0]))
	assert.False(t, item.UpdatedAt.Before(item.CreatedAt))
}

func TestAddItemRejectsEmptyName(t *testing.T) {
	s := testStore(t)
	_, _, err := s.AddItem(Incoming{Name: "   "})
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryValidation))
}

func TestMergePolicy(t *testing.T) {
	t.Run("fill-if-empty is idempotent", func(t *testing.T) {
		s := testStore(t)
		_, created, err := s.AddItem(Incoming{Name: "Office Chair", Color: "black"})
		require.NoError(t, err)
		require.True(t, created)

		item, created, err := s.AddItem(Incoming{Name: "Office Chair", Brand: "Herman Miller"})
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, "black", item.Color)
		assert.Equal(t, "Herman Miller", item.Brand)

		again, created, err := s.AddItem(Incoming{Name: "Office Chair", Brand: "Herman Miller"})
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, item.Brand, again.Brand, "re-merging the identical detection changes nothing")
		assert.Equal(t, item.Color, again.Color)
		assert.Equal(t, 1, s.Len())
	})

	t.Run("populated fields never overwritten", func(t *testing.T) {
		s := testStore(t)
		_, _, err := s.AddItem(Incoming{Name: "Mug", Brand: "Acme", EstimatedValue: 12})
		require.NoError(t, err)

		item, created, err := s.AddItem(Incoming{Name: "Mug", Brand: "Other Brand", EstimatedValue: 99})
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, "Acme", item.Brand)
		assert.Equal(t, 12.0, item.EstimatedValue)
	})

	t.Run("longer name wins on substring match", func(t *testing.T) {
		s := testStore(t)
		_, _, err := s.AddItem(Incoming{Name: "Lamp"})
		require.NoError(t, err)

		item, created, err := s.AddItem(Incoming{Name: "Desk Lamp"})
		require.NoError(t, err)
		assert.False(t, created, "substring containment must match the existing record")
		assert.Equal(t, "Desk Lamp", item.Name)

		// Ties keep the existing spelling
		item, _, err = s.AddItem(Incoming{Name: "DESK LAMP"})
		require.NoError(t, err)
		assert.Equal(t, "Desk Lamp", item.Name)
	})

	t.Run("category replaced only while Other", func(t *testing.T) {
		s := testStore(t)
		_, _, err := s.AddItem(Incoming{Name: "Blender", Category: CategoryOther})
		require.NoError(t, err)

		item, _, err := s.AddItem(Incoming{Name: "Blender", Category: "Kitchen Appliance"})
		require.NoError(t, err)
		assert.Equal(t, "Kitchen Appliance", item.Category)

		item, _, err = s.AddItem(Incoming{Name: "Blender", Category: "Electronics"})
		require.NoError(t, err)
		assert.Equal(t, "Kitchen Appliance", item.Category, "a specific category is never replaced")
	})

	t.Run("photo attached only if none", func(t *testing.T) {
		s := testStore(t)
		first, _, err := s.AddItem(Incoming{Name: "Vase", Photo: []byte{0x01}})
		require.NoError(t, err)
		require.Len(t, first.Photos, 1)

		item, _, err := s.AddItem(Incoming{Name: "Vase", Photo: []byte{0x02}})
		require.NoError(t, err)
		assert.Equal(t, first.Photos, item.Photos, "existing photo must be kept")
	})
}

func TestAddItemsBatchDedup(t *testing.T) {
	s := testStore(t)

	created, merged, err := s.AddItems([]Incoming{
		{Name: "Red Chair"},
		{Name: "red chair"},
		{Name: "Red Office Chair"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, created, "one scan pass must yield one record")
	assert.Zero(t, merged)

	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "Red Office Chair", items[0].Name, "longest survivor of in-batch dedup")
}

func TestAddItemsKeepsDistinctObjectsApart(t *testing.T) {
	s := testStore(t)

	created, merged, err := s.AddItems([]Incoming{
		{Name: "Red Chair"},
		{Name: "Red Mug"},
		{Name: "Coffee Mug"},
		{Name: "Coffee Table"},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, created, "a shared adjective must not collapse distinct objects")
	assert.Zero(t, merged)
	assert.Equal(t, 4, s.Len())
}

func TestAddItemsMergesIntoExisting(t *testing.T) {
	s := testStore(t)
	_, _, err := s.AddItem(Incoming{Name: "Bookshelf", Room: "Study"})
	require.NoError(t, err)

	created, merged, err := s.AddItems([]Incoming{
		{Name: "Bookshelf", Brand: "IKEA"},
		{Name: "Table Lamp"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, created)
	assert.Equal(t, 1, merged)
	assert.Equal(t, 2, s.Len())
}

func TestFindDuplicateGroups(t *testing.T) {
	s := testStore(t)
	_, err := s.create(Incoming{Name: "Lamp"})
	require.NoError(t, err)
	_, err = s.create(Incoming{Name: "Lamp"})
	require.NoError(t, err)
	_, err = s.create(Incoming{Name: "Desk Lamp", Brand: "IKEA", Color: "white"})
	require.NoError(t, err)
	_, err = s.create(Incoming{Name: "Sofa"})
	require.NoError(t, err)

	groups := s.FindDuplicateGroups()
	require.Len(t, groups, 1)
	assert.Len(t, groups[0], 3, "both Lamps and Desk Lamp form one group")
}

func TestMergeGroup(t *testing.T) {
	s := testStore(t)

	plain, err := s.create(Incoming{Name: "Lamp"})
	require.NoError(t, err)
	withPhoto, err := s.create(Incoming{Name: "Lamp Base", Photo: []byte{0x01}})
	require.NoError(t, err)
	rich, err := s.create(Incoming{Name: "Desk Lamp", Brand: "IKEA", Color: "white", Room: "Study"})
	require.NoError(t, err)
	require.Equal(t, 3, s.Len())

	keeper, err := s.MergeGroup([]string{plain.ID, withPhoto.ID, rich.ID}, "")
	require.NoError(t, err)

	assert.Equal(t, rich.ID, keeper.ID, "most populated member becomes the keeper")
	assert.Equal(t, "Desk Lamp", keeper.Name)
	assert.Equal(t, "IKEA", keeper.Brand)
	require.Len(t, keeper.Photos, 1, "member photo transferred to a photoless keeper")
	assert.FileExists(t, s.PhotoPath(keeper.Photos[0]))
	assert.Equal(t, 3, keeper.Quantity, "merged members add their quantities")
	assert.Equal(t, 1, s.Len())
}

func TestMergeGroupExplicitKeeper(t *testing.T) {
	s := testStore(t)
	a, err := s.create(Incoming{Name: "Chair"})
	require.NoError(t, err)
	b, err := s.create(Incoming{Name: "Armchair Chair", Brand: "Acme"})
	require.NoError(t, err)

	keeper, err := s.MergeGroup([]string{a.ID, b.ID}, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, keeper.ID)
	assert.Equal(t, "Armchair Chair", keeper.Name, "longer member name still wins")
	assert.Equal(t, "Acme", keeper.Brand)
}

func TestMergeGroupValidation(t *testing.T) {
	s := testStore(t)
	a, _, err := s.AddItem(Incoming{Name: "Chair"})
	require.NoError(t, err)

	_, err = s.MergeGroup([]string{a.ID}, "")
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryValidation))

	_, err = s.MergeGroup([]string{a.ID, "missing"}, "")
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryNotFound))
}

func TestDeleteItemRemovesPhotos(t *testing.T) {
	s := testStore(t)
	item, _, err := s.AddItem(Incoming{Name: "Mirror", Photo: []byte{0x01}})
	require.NoError(t, err)
	photo := s.PhotoPath(item.Photos[0])
	require.FileExists(t, photo)

	require.NoError(t, s.DeleteItem(item.ID))
	assert.NoFileExists(t, photo)
	assert.Zero(t, s.Len())

	err = s.DeleteItem(item.ID)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryNotFound))
}

func TestStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	settings := conf.InventorySettings{
		Path:      filepath.Join(dir, "inventory.json"),
		PhotoPath: filepath.Join(dir, "photos"),
	}

	s, err := NewStore(settings, nil)
	require.NoError(t, err)
	_, _, err = s.AddItem(Incoming{Name: "Red Mug", Room: "Kitchen", EstimatedValue: 8})
	require.NoError(t, err)

	reopened, err := NewStore(settings, nil)
	require.NoError(t, err)
	items := reopened.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "Red Mug", items[0].Name)
	assert.Equal(t, "Kitchen", items[0].Room)
}

func TestStoreRejectsCorruptDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "inventory.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewStore(conf.InventorySettings{Path: path, PhotoPath: filepath.Join(dir, "photos")}, nil)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryParsing))
}

func TestQueries(t *testing.T) {
	s := testStore(t)
	_, _, err := s.AddItem(Incoming{Name: "Red Mug", Room: "Kitchen", Category: "Kitchenware", EstimatedValue: 8})
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, _, err = s.AddItem(Incoming{Name: "Monitor", Room: "Study", Category: "Electronics", EstimatedValue: 250})
	require.NoError(t, err)

	t.Run("list filters", func(t *testing.T) {
		assert.Len(t, s.List(Filter{}), 2)
		assert.Len(t, s.List(Filter{Room: "kitchen"}), 1)
		assert.Len(t, s.List(Filter{Category: "electronics"}), 1)
		assert.Empty(t, s.List(Filter{Room: "Garage"}))
		assert.Equal(t, "Monitor", s.List(Filter{})[0].Name, "newest first")
	})

	t.Run("search", func(t *testing.T) {
		require.Len(t, s.Search("mug"), 1)
		assert.Len(t, s.Search("electronics"), 1)
		assert.Empty(t, s.Search("piano"))
		assert.Empty(t, s.Search("  "))
	})

	t.Run("summary", func(t *testing.T) {
		sum := s.Summarize()
		assert.Equal(t, 2, sum.TotalItems)
		assert.Equal(t, 258.0, sum.TotalValue)
		assert.Equal(t, map[string]int{"Kitchen": 1, "Study": 1}, sum.ByRoom)
		assert.Equal(t, map[string]int{"Kitchenware": 1, "Electronics": 1}, sum.ByCategory)
		require.Len(t, sum.Recent, 2)
		assert.Equal(t, "Monitor", sum.Recent[0].Name)
	})
}
