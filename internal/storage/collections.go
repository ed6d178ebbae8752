package storage

import (
	"reflect"

	"coffeemasters/internal/models"
)

// Collection names a durable collection of the local store.
type Collection string

const (
	CollectionOrders      Collection = "orders"
	CollectionMenu        Collection = "menu"
	CollectionCart        Collection = "cart"
	CollectionPreferences Collection = "preferences"
	CollectionSyncQueue   Collection = "syncQueue"
)

// Collections lists every collection in schema order.
var Collections = []Collection{
	CollectionOrders,
	CollectionMenu,
	CollectionCart,
	CollectionPreferences,
	CollectionSyncQueue,
}

type collectionDef struct {
	name    Collection
	model   any
	typ     reflect.Type
	key     string
	indices map[string]string
}

func define(name Collection, model any, key string, indices map[string]string) collectionDef {
	return collectionDef{
		name:    name,
		model:   model,
		typ:     reflect.TypeOf(model).Elem(),
		key:     key,
		indices: indices,
	}
}

func (d collectionDef) newRecord() any {
	return reflect.New(d.typ).Interface()
}

var schema = map[Collection]collectionDef{
	CollectionOrders: define(CollectionOrders, &models.Order{}, "id", map[string]string{
		"status":    "status",
		"timestamp": "timestamp",
		"userId":    "user_id",
		"localId":   "local_id",
	}),
	CollectionMenu: define(CollectionMenu, &models.MenuCategory{}, "id", map[string]string{
		"category":    "category",
		"lastUpdated": "last_updated",
	}),
	CollectionCart:        define(CollectionCart, &models.CartEntry{}, "product_id", nil),
	CollectionPreferences: define(CollectionPreferences, &models.Preference{}, "key", nil),
	CollectionSyncQueue: define(CollectionSyncQueue, &models.SyncQueueEntry{}, "id", map[string]string{
		"action":       "action",
		"timestamp":    "timestamp",
		"deadLettered": "dead_lettered",
	}),
}
