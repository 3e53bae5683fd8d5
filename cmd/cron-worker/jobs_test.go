package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/listingprice-indexer/pkg/config"
)

func TestSplitNames(t *testing.T) {
	assert.Nil(t, splitNames(""))
	assert.Equal(t, []string{"outbox-retention"}, splitNames(" outbox-retention , "))
	assert.Equal(t, []string{"a", "b"}, splitNames("a,,b"))
}

func TestLockKey(t *testing.T) {
	cfg := &config.Config{}
	assert.Equal(t, "lpi:cron:lock:local", lockKey(cfg))

	cfg.App.Env = config.AppEnvProd
	assert.Equal(t, "lpi:cron:lock:prod", lockKey(cfg))

	cfg.Cron.LockKey = " custom "
	assert.Equal(t, "custom", lockKey(cfg))
}
