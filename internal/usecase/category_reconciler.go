package usecase

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/pricelens/backend/internal/domain"
)

// Reconciliation is the outcome of merging a fresh category snapshot with persisted state
type Reconciliation struct {
	// Categories are the active categories in the order they were fetched
	Categories []domain.Category
	Lookup     domain.CategoryLookup
	Minted     []domain.Category
	Retired    []domain.Category
	// Duplicates lists descriptions that occurred more than once in the snapshot
	Duplicates []string
}

// CategoryReconciler assigns stable codes to freshly fetched categories.
// Categories are matched on description; raw ids are not stable across runs.
type CategoryReconciler struct {
	store  domain.CategoryStore
	logger *logrus.Entry
}

// NewCategoryReconciler creates a reconciler backed by the given store
func NewCategoryReconciler(store domain.CategoryStore, logger *logrus.Logger) *CategoryReconciler {
	return &CategoryReconciler{
		store:  store,
		logger: logger.WithField("component", "usecase.category_reconciler"),
	}
}

// Reconcile merges fresh categories with the retailer's persisted categories and
// persists the result. Known descriptions keep their code, new descriptions get a
// code above every code ever assigned, and vanished categories are kept inactive
// so their codes stay reserved.
func (r *CategoryReconciler) Reconcile(ctx context.Context, retailer string, fresh []domain.Category) (*Reconciliation, error) {
	if len(fresh) == 0 {
		return nil, fmt.Errorf("%w: retailer %s", domain.ErrEmptyCategorySnapshot, retailer)
	}

	persisted, err := r.store.LoadCategories(ctx, retailer)
	if err != nil {
		return nil, fmt.Errorf("%w: load %s: %v", domain.ErrCategoryStore, retailer, err)
	}

	known := make(map[string]domain.Category, len(persisted))
	maxCode := 0
	for _, category := range persisted {
		if _, exists := known[category.Description]; !exists {
			category.Active = false
			known[category.Description] = category
		}
		if category.Code > maxCode {
			maxCode = category.Code
		}
	}

	result := &Reconciliation{
		Categories: make([]domain.Category, 0, len(fresh)),
		Lookup:     make(domain.CategoryLookup, len(fresh)),
	}
	seen := make(map[string]bool, len(fresh))

	for _, category := range fresh {
		if seen[category.Description] {
			result.Duplicates = append(result.Duplicates, category.Description)
			r.logger.WithFields(logrus.Fields{
				"retailer":    retailer,
				"description": category.Description,
				"id":          category.ID,
			}).Warn("Duplicate category description in snapshot, sharing code")
		}
		seen[category.Description] = true

		merged := domain.Category{
			ID:          category.ID,
			Description: category.Description,
			URL:         category.URL,
			Active:      true,
		}
		if previous, ok := known[category.Description]; ok {
			merged.Code = previous.Code
		} else {
			maxCode++
			merged.Code = maxCode
			result.Minted = append(result.Minted, merged)
		}
		known[category.Description] = merged

		result.Categories = append(result.Categories, merged)
		result.Lookup[category.ID] = merged
	}

	for _, category := range persisted {
		if seen[category.Description] {
			continue
		}
		if category.Active {
			result.Retired = append(result.Retired, category)
		}
	}

	if err := r.store.SaveCategories(ctx, retailer, mergedState(known)); err != nil {
		return nil, fmt.Errorf("%w: save %s: %v", domain.ErrCategoryStore, retailer, err)
	}

	r.logger.WithFields(logrus.Fields{
		"retailer": retailer,
		"active":   len(result.Categories),
		"minted":   len(result.Minted),
		"retired":  len(result.Retired),
	}).Info("Categories reconciled")

	return result, nil
}

// mergedState is the full persisted list ordered by code. Each code appears once;
// categories not seen in this run are stored inactive with their last known fields.
func mergedState(known map[string]domain.Category) []domain.Category {
	byCode := make(map[int]domain.Category, len(known))
	for description, category := range known {
		category.Description = description
		category.ID = ""
		if existing, ok := byCode[category.Code]; ok && existing.Active && !category.Active {
			continue
		}
		byCode[category.Code] = category
	}

	state := make([]domain.Category, 0, len(byCode))
	for _, category := range byCode {
		state = append(state, category)
	}
	sort.Slice(state, func(i, j int) bool { return state[i].Code < state[j].Code })
	return state
}
