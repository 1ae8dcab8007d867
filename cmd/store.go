package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/purchase-planner/internal/config"
	"github.com/sells-group/purchase-planner/internal/store"
)

// openStore connects to the configured plan store and migrates it. It
// returns a nil store for the "none" driver.
func openStore(ctx context.Context, sc config.StoreConfig) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch sc.Driver {
	case "none":
		return nil, nil
	case "sqlite":
		st, err = store.NewSQLite(sc.DatabaseURL)
	case "postgres":
		st, err = store.NewPostgres(ctx, sc.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", sc.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

// requireStore is openStore for commands that cannot work without one.
func requireStore(ctx context.Context, sc config.StoreConfig) (store.Store, error) {
	st, err := openStore(ctx, sc)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, eris.New("plan store is disabled (store.driver=none)")
	}
	return st, nil
}
