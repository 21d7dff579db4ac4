package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/example/storefront-sync/internal/domain"
	"go.uber.org/zap"
)

func saveState(ctx context.Context, storage domain.StateStorage, key string, state any) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := storage.Save(ctx, key, raw); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// loadState decodes the value under key into dest. Missing or corrupt data
// leaves dest untouched and reports false; it is never fatal.
func loadState(ctx context.Context, storage domain.StateStorage, key string, dest any, logger *zap.Logger) bool {
	raw, err := storage.Load(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			logger.Warn("load persisted state failed, starting empty",
				zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		// skip corrupted state, the store starts empty
		logger.Warn("persisted state is corrupt, starting empty",
			zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func orNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
