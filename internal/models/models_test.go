package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestStringListDecodesLegacyForms(t *testing.T) {
	cases := map[string]interface{}{
		"array":      bson.A{"通常便", " 速達 "},
		"json":       `["通常便","速達"]`,
		"csv":        "通常便, 速達",
		"multi-line": "通常便\n速達\n",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			data, err := bson.Marshal(bson.M{"shippingMethods": raw})
			require.NoError(t, err)

			var out struct {
				ShippingMethods StringList `bson:"shippingMethods"`
			}
			require.NoError(t, bson.Unmarshal(data, &out))
			assert.Equal(t, StringList{"通常便", "速達"}, out.ShippingMethods)
		})
	}
}

func TestProductMOQDefaultsToOne(t *testing.T) {
	assert.Equal(t, 1, Product{}.MOQ())
	assert.Equal(t, 10, Product{MinOrderQty: 10}.MOQ())
}

func TestShippingAddressSnapshotJoinsAddress(t *testing.T) {
	snap := ShippingAddress{
		Name:       "山田 太郎",
		Prefecture: "東京都",
		City:       "千代田区",
		Address1:   "丸の内1-1-1",
	}.Snapshot()
	assert.Equal(t, "東京都千代田区丸の内1-1-1", snap.Address)
	assert.Equal(t, "山田 太郎", snap.Name)
}

func TestOrderStatusLabels(t *testing.T) {
	assert.True(t, StatusShipped.Valid())
	assert.False(t, OrderStatus("lost").Valid())
	assert.Equal(t, "キャンセル", StatusCancelled.Label())
	assert.Equal(t, "lost", OrderStatus("lost").Label())
}
