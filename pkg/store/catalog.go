package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/hazyhaar/brine-ledger/pkg/catalog"
)

// SeedStats counts what ApplyManifest wrote.
type SeedStats struct {
	Components int `json:"components"`
	Recipes    int `json:"recipes"`
	Items      int `json:"recipe_items"`
	Products   int `json:"products"`
}

// ApplyManifest upserts the whole catalog in one transaction. Recipe items are
// replaced, products are matched on their normalized name.
func (s *Store) ApplyManifest(ctx context.Context, m *catalog.Manifest) (*SeedStats, error) {
	stats := &SeedStats{}
	err := s.WithTx(ctx, func(tx *Tx) error {
		componentIDs := make(map[string]int64, len(m.Components))
		for _, name := range m.Components {
			id, err := tx.UpsertComponent(ctx, name)
			if err != nil {
				return err
			}
			componentIDs[name] = id
			stats.Components++
		}

		recipeIDs := make(map[string]int64, len(m.Recipes))
		for _, r := range m.Recipes {
			id, err := tx.UpsertRecipe(ctx, r.Name)
			if err != nil {
				return err
			}
			recipeIDs[r.Name] = id
			stats.Recipes++

			if _, err := tx.exec(ctx, `DELETE FROM recipe_items WHERE recipe_id = ?`, id); err != nil {
				return fmt.Errorf("clear items of recipe %q: %w", r.Name, err)
			}
			names := make([]string, 0, len(r.Items))
			for c := range r.Items {
				names = append(names, c)
			}
			sort.Strings(names)
			for _, c := range names {
				if err := tx.SetRecipeItem(ctx, id, componentIDs[c], r.Items[c]); err != nil {
					return err
				}
				stats.Items++
			}
		}

		for _, p := range m.Products {
			var recipeID *int64
			if p.Recipe != "" {
				id := recipeIDs[p.Recipe]
				recipeID = &id
			}
			if _, err := tx.UpsertProduct(ctx, p.Name, p.PackageWeightKg, recipeID); err != nil {
				return err
			}
			stats.Products++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// EnsureComponents inserts the named components that do not exist yet.
func (s *Store) EnsureComponents(ctx context.Context, names []string) error {
	for _, n := range names {
		if _, err := s.exec(ctx, `INSERT INTO components (name) VALUES (?) ON CONFLICT(name) DO NOTHING`, n); err != nil {
			return fmt.Errorf("ensure component %q: %w", n, err)
		}
	}
	return nil
}

// UpsertComponent returns the id of the named component, creating it if needed.
func (tx *Tx) UpsertComponent(ctx context.Context, name string) (int64, error) {
	var id int64
	err := tx.queryRow(ctx,
		`INSERT INTO components (name) VALUES (?)
		 ON CONFLICT(name) DO UPDATE SET name = excluded.name
		 RETURNING id`, name).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert component %q: %w", name, err)
	}
	return id, nil
}

// UpsertRecipe returns the id of the named recipe, creating it if needed.
func (tx *Tx) UpsertRecipe(ctx context.Context, name string) (int64, error) {
	var id int64
	err := tx.queryRow(ctx,
		`INSERT INTO recipes (name) VALUES (?)
		 ON CONFLICT(name) DO UPDATE SET name = excluded.name
		 RETURNING id`, name).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert recipe %q: %w", name, err)
	}
	return id, nil
}

// SetRecipeItem sets one coefficient of a recipe.
func (tx *Tx) SetRecipeItem(ctx context.Context, recipeID, componentID int64, perKg float64) error {
	_, err := tx.exec(ctx,
		`INSERT INTO recipe_items (recipe_id, component_id, quantity_per_kg) VALUES (?, ?, ?)
		 ON CONFLICT(recipe_id, component_id) DO UPDATE SET quantity_per_kg = excluded.quantity_per_kg`,
		recipeID, componentID, perKg)
	if err != nil {
		return fmt.Errorf("set recipe item %d/%d: %w", recipeID, componentID, err)
	}
	return nil
}

// UpsertProduct creates or updates a product keyed by its normalized name.
func (tx *Tx) UpsertProduct(ctx context.Context, declaredName string, packageWeightKg float64, recipeID *int64) (int64, error) {
	var rid sql.NullInt64
	if recipeID != nil {
		rid = sql.NullInt64{Int64: *recipeID, Valid: true}
	}
	var id int64
	err := tx.queryRow(ctx,
		`INSERT INTO products (declared_name, name_key, package_weight_kg, recipe_id) VALUES (?, ?, ?, ?)
		 ON CONFLICT(name_key) DO UPDATE SET
			declared_name = excluded.declared_name,
			package_weight_kg = excluded.package_weight_kg,
			recipe_id = excluded.recipe_id
		 RETURNING id`,
		declaredName, catalog.NormalizeKey(declaredName), packageWeightKg, rid).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert product %q: %w", declaredName, err)
	}
	return id, nil
}

const productColumns = `p.id, p.declared_name, p.package_weight_kg, p.recipe_id, COALESCE(r.name, '')`

func scanProduct(sc interface{ Scan(...any) error }) (*catalog.Product, error) {
	var (
		p   catalog.Product
		rid sql.NullInt64
	)
	if err := sc.Scan(&p.ID, &p.DeclaredName, &p.PackageWeightKg, &rid, &p.RecipeName); err != nil {
		return nil, err
	}
	if rid.Valid {
		id := rid.Int64
		p.RecipeID = &id
	}
	return &p, nil
}

// ResolveProduct finds a product by declared name, ignoring case and
// whitespace differences. It returns ErrNotFound when nothing matches.
func (c conn) ResolveProduct(ctx context.Context, declaredName string) (*catalog.Product, error) {
	row := c.queryRow(ctx,
		`SELECT `+productColumns+`
		 FROM products p LEFT JOIN recipes r ON r.id = p.recipe_id
		 WHERE p.name_key = ?`, catalog.NormalizeKey(declaredName))
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolve product %q: %w", declaredName, err)
	}
	return p, nil
}

// Products lists the catalog products by declared name.
func (c conn) Products(ctx context.Context) ([]catalog.Product, error) {
	rows, err := c.query(ctx,
		`SELECT `+productColumns+`
		 FROM products p LEFT JOIN recipes r ON r.id = p.recipe_id
		 ORDER BY p.declared_name`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var out []catalog.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// ComponentIDs maps every component name to its id.
func (c conn) ComponentIDs(ctx context.Context) (map[string]int64, error) {
	rows, err := c.query(ctx, `SELECT id, name FROM components`)
	if err != nil {
		return nil, fmt.Errorf("list components: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]int64)
	for rows.Next() {
		var (
			id   int64
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan component: %w", err)
		}
		ids[name] = id
	}
	return ids, rows.Err()
}

// RecipeItems returns the coefficients of a recipe with component names.
func (c conn) RecipeItems(ctx context.Context, recipeID int64) ([]catalog.RecipeItem, error) {
	rows, err := c.query(ctx,
		`SELECT ri.recipe_id, ri.component_id, c.name, ri.quantity_per_kg
		 FROM recipe_items ri JOIN components c ON c.id = ri.component_id
		 WHERE ri.recipe_id = ?
		 ORDER BY c.name`, recipeID)
	if err != nil {
		return nil, fmt.Errorf("recipe items %d: %w", recipeID, err)
	}
	defer rows.Close()

	var out []catalog.RecipeItem
	for rows.Next() {
		var it catalog.RecipeItem
		if err := rows.Scan(&it.RecipeID, &it.ComponentID, &it.ComponentName, &it.QuantityPerKg); err != nil {
			return nil, fmt.Errorf("scan recipe item: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}
