package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func findIndex(t *testing.T, collection, name string) mongo.IndexModel {
	t.Helper()
	for _, plan := range indexPlan() {
		if plan.collection != collection {
			continue
		}
		for _, m := range plan.models {
			if m.Options != nil && m.Options.Name != nil && *m.Options.Name == name {
				return m
			}
		}
	}
	t.Fatalf("index %s.%s not planned", collection, name)
	return mongo.IndexModel{}
}

func TestAddressesAllowOneDefaultPerUser(t *testing.T) {
	idx := findIndex(t, "shipping_addresses", "one_default_per_user")

	assert.Equal(t, bson.D{{Key: "userId", Value: 1}}, idx.Keys)
	require.NotNil(t, idx.Options.Unique)
	assert.True(t, *idx.Options.Unique)
	assert.Equal(t, bson.M{"isDefault": true}, idx.Options.PartialFilterExpression)
}

func TestUniqueKeysArePlanned(t *testing.T) {
	for _, tc := range []struct{ collection, name string }{
		{"products", "sku_unique"},
		{"orders", "order_number_unique"},
		{"user_profiles", "email_unique"},
		{"refresh_tokens", "token_hash_unique"},
	} {
		idx := findIndex(t, tc.collection, tc.name)
		require.NotNil(t, idx.Options.Unique, tc.name)
		assert.True(t, *idx.Options.Unique, tc.name)
	}
}
