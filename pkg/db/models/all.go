package models

// All lists every persisted model, in dependency order, for sqlite
// auto-migration in development and tests.
func All() []any {
	return []any{
		&User{},
		&Product{},
		&Order{},
		&Review{},
		&CartItem{},
		&WishlistItem{},
		&Address{},
		&OutboxEvent{},
	}
}
