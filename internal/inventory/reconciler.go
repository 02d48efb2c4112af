package inventory

import (
	"time"

	"github.com/google/uuid"

	"github.com/tallycam/tallycam-go/internal/errors"
	"github.com/tallycam/tallycam-go/internal/namematch"
)

// AddItem reconciles one incoming record against the inventory and
// persists the result. Returns the affected item and whether it was newly
// created.
func (s *Store) AddItem(in Incoming) (*Item, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, created, err := s.reconcile(in)
	if err != nil {
		return nil, false, err
	}
	if err := s.flush(); err != nil {
		return nil, false, err
	}
	return item, created, nil
}

// AddItems reconciles a batch. The batch is first deduplicated against
// itself so one scan pass cannot create two near-identical records, then
// each survivor goes through per-item matching. Returns how many items
// were created and how many merged into existing records.
func (s *Store) AddItems(batch []Incoming) (created, merged int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, in := range dedupBatch(batch) {
		_, isNew, err := s.reconcile(in)
		if err != nil {
			return created, merged, err
		}
		if isNew {
			created++
		} else {
			merged++
		}
	}
	if err := s.flush(); err != nil {
		return created, merged, err
	}

	logger.Info("batch reconciled",
		"offered", len(batch),
		"created", created,
		"merged", merged)
	return created, merged, nil
}

// dedupBatch collapses same-object entries within one batch, keeping the
// longer name and filling empty fields from the dropped entry. In-batch
// matching is looser than inventory matching (a word subset counts, so
// "Red Chair" folds into "Red Office Chair") since entries from one scan
// pass describe the same physical scene. Names that merely share a word
// stay separate records.
func dedupBatch(batch []Incoming) []Incoming {
	var kept []Incoming
outer:
	for _, in := range batch {
		if namematch.Normalize(in.Name) == "" {
			continue
		}
		for i := range kept {
			if namematch.Matches(in.Name, kept[i].Name, namematch.TierWordSubset) {
				foldIncoming(&kept[i], in)
				continue outer
			}
		}
		kept = append(kept, in)
	}
	return kept
}

// foldIncoming merges src into dst: longer name wins, empty fields fill.
func foldIncoming(dst *Incoming, src Incoming) {
	if len(src.Name) > len(dst.Name) {
		dst.Name = src.Name
	}
	fillString(&dst.Category, src.Category)
	fillString(&dst.Room, src.Room)
	fillString(&dst.Brand, src.Brand)
	fillString(&dst.Color, src.Color)
	fillString(&dst.Size, src.Size)
	if dst.EstimatedValue == 0 {
		dst.EstimatedValue = src.EstimatedValue
	}
	if dst.Photo == nil {
		dst.Photo = src.Photo
	}
	if len(dst.FrameSiblings) == 0 {
		dst.FrameSiblings = src.FrameSiblings
	}
}

// reconcile matches one incoming record and either merges or creates.
// Callers hold s.mu and flush afterwards.
func (s *Store) reconcile(in Incoming) (*Item, bool, error) {
	if namematch.Normalize(in.Name) == "" {
		return nil, false, errors.Newf("incoming item has no name").
			Component("inventory").
			Category(errors.CategoryValidation).
			Build()
	}

	if existing := s.match(in.Name); existing != nil {
		if err := s.mergeIncoming(existing, in); err != nil {
			return nil, false, err
		}
		s.metrics.IncrementItemsMerged()
		logger.Debug("detection merged into existing item",
			"item_id", existing.ID,
			"name", existing.Name)
		return existing, false, nil
	}

	item, err := s.create(in)
	if err != nil {
		return nil, false, err
	}
	s.metrics.IncrementItemsCreated()
	logger.Debug("inventory item created", "item_id", item.ID, "name", item.Name)
	return item, true, nil
}

// match finds the first existing item whose name matches the incoming
// name: exact normalized equality first, then bidirectional substring
// containment. No geometric or visual similarity is used.
func (s *Store) match(name string) *Item {
	norm := namematch.Normalize(name)
	for _, it := range s.items {
		if namematch.Normalize(it.Name) == norm {
			return it
		}
	}
	for _, it := range s.items {
		if namematch.Matches(name, it.Name, namematch.TierSubstring) {
			return it
		}
	}
	return nil
}

// mergeIncoming applies the merge policy: fill-if-empty for descriptive
// fields, category replaced only while "Other", longer name wins (ties
// keep the existing name), photo attached only if the record has none.
func (s *Store) mergeIncoming(existing *Item, in Incoming) error {
	if len(in.Name) > len(existing.Name) {
		existing.Name = in.Name
	}
	fillString(&existing.Room, in.Room)
	fillString(&existing.Brand, in.Brand)
	fillString(&existing.Color, in.Color)
	fillString(&existing.Size, in.Size)
	if existing.EstimatedValue == 0 {
		existing.EstimatedValue = in.EstimatedValue
	}
	if (existing.Category == "" || existing.Category == CategoryOther) && in.Category != "" {
		existing.Category = in.Category
	}
	if len(existing.Photos) == 0 && in.Photo != nil {
		name, err := s.writePhoto(existing.ID, in.Photo)
		if err != nil {
			return err
		}
		existing.Photos = append(existing.Photos, name)
	}
	if len(existing.FrameSiblings) == 0 {
		existing.FrameSiblings = in.FrameSiblings
	}
	existing.UpdatedAt = time.Now()
	return nil
}

func (s *Store) create(in Incoming) (*Item, error) {
	now := time.Now()
	item := &Item{
		ID:             uuid.NewString(),
		Name:           in.Name,
		Category:       in.Category,
		Room:           in.Room,
		Brand:          in.Brand,
		Color:          in.Color,
		Size:           in.Size,
		EstimatedValue: in.EstimatedValue,
		Quantity:       1,
		Source:         in.Source,
		FrameSiblings:  in.FrameSiblings,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if in.Photo != nil {
		name, err := s.writePhoto(item.ID, in.Photo)
		if err != nil {
			return nil, err
		}
		item.Photos = []string{name}
	}
	s.items = append(s.items, item)
	return item, nil
}

// FindDuplicateGroups scans the inventory once and groups items whose
// normalized names are equal or one contains the other. An item belongs
// to at most one group; only groups of two or more are returned.
func (s *Store) FindDuplicateGroups() [][]*Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	grouped := make(map[string]bool, len(s.items))
	var groups [][]*Item

	for i, seed := range s.items {
		if grouped[seed.ID] {
			continue
		}
		group := []*Item{seed}
		for _, other := range s.items[i+1:] {
			if grouped[other.ID] {
				continue
			}
			if namematch.Matches(seed.Name, other.Name, namematch.TierSubstring) {
				group = append(group, other)
				grouped[other.ID] = true
			}
		}
		if len(group) > 1 {
			grouped[seed.ID] = true
			groups = append(groups, group)
		}
	}
	return groups
}

// MergeGroup folds a duplicate group into a single keeper and deletes the
// other members and their photo files. With an empty keeperID the keeper
// is chosen by field-population score. Returns the surviving item.
func (s *Store) MergeGroup(ids []string, keeperID string) (*Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(ids) < 2 {
		return nil, errors.Newf("a merge group needs at least two items").
			Component("inventory").
			Category(errors.CategoryValidation).
			Build()
	}

	members := make([]*Item, 0, len(ids))
	for _, id := range ids {
		found := false
		for _, it := range s.items {
			if it.ID == id {
				members = append(members, it)
				found = true
				break
			}
		}
		if !found {
			return nil, errors.Newf("inventory item %s not found", id).
				Component("inventory").
				Category(errors.CategoryNotFound).
				Build()
		}
	}

	keeper := members[0]
	if keeperID != "" {
		keeper = nil
		for _, it := range members {
			if it.ID == keeperID {
				keeper = it
				break
			}
		}
		if keeper == nil {
			return nil, errors.Newf("keeper %s is not part of the group", keeperID).
				Component("inventory").
				Category(errors.CategoryValidation).
				Build()
		}
	} else {
		for _, it := range members[1:] {
			if populationScore(it) > populationScore(keeper) {
				keeper = it
			}
		}
	}

	for _, member := range members {
		if member.ID == keeper.ID {
			continue
		}
		s.foldMember(keeper, member)
		if err := s.deletePhotos(member); err != nil {
			return nil, err
		}
		s.removeLocked(member.ID)
		s.metrics.IncrementItemsMerged()
	}
	keeper.UpdatedAt = time.Now()

	if err := s.flush(); err != nil {
		return nil, err
	}
	logger.Info("duplicate group merged",
		"keeper_id", keeper.ID,
		"keeper_name", keeper.Name,
		"merged", len(members)-1)
	return keeper, nil
}

// foldMember merges a group member into the keeper with the standard
// fill-if-empty and longer-name rules. Each member counted its own
// physical units, so quantities add. A photo is transferred by filename
// (rather than deleted) when the keeper has none.
func (s *Store) foldMember(keeper, member *Item) {
	if len(member.Name) > len(keeper.Name) {
		keeper.Name = member.Name
	}
	keeper.Quantity += member.Quantity
	fillString(&keeper.Room, member.Room)
	fillString(&keeper.Brand, member.Brand)
	fillString(&keeper.Color, member.Color)
	fillString(&keeper.Size, member.Size)
	fillString(&keeper.Notes, member.Notes)
	if keeper.EstimatedValue == 0 {
		keeper.EstimatedValue = member.EstimatedValue
	}
	if keeper.PurchasePrice == 0 {
		keeper.PurchasePrice = member.PurchasePrice
	}
	if (keeper.Category == "" || keeper.Category == CategoryOther) && member.Category != "" {
		keeper.Category = member.Category
	}
	if len(keeper.Photos) == 0 && len(member.Photos) > 0 {
		keeper.Photos = member.Photos
		member.Photos = nil
	}
	if len(keeper.FrameSiblings) == 0 {
		keeper.FrameSiblings = member.FrameSiblings
	}
}

// populationScore ranks group members as merge keepers: name length plus
// a fixed bonus per populated field.
func populationScore(it *Item) int {
	const bonus = 10
	score := len(it.Name)
	for _, populated := range []bool{
		it.Brand != "",
		it.Color != "",
		it.Size != "",
		it.Room != "",
		it.Notes != "",
		it.Category != "" && it.Category != CategoryOther,
		it.EstimatedValue > 0,
		len(it.Photos) > 0,
	} {
		if populated {
			score += bonus
		}
	}
	return score
}

// removeLocked drops an item from the list. Callers hold s.mu.
func (s *Store) removeLocked(id string) {
	for i, it := range s.items {
		if it.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return
		}
	}
}

func fillString(dst *string, src string) {
	if *dst == "" && src != "" {
		*dst = src
	}
}
