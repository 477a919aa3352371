// Package service wires the lending engine's components over one store.
package service

import (
	"lendbook/service/catalog"
	"lendbook/service/contacts"
	"lendbook/service/groups"
	"lendbook/service/ledger"
	"lendbook/service/notify"
	"lendbook/service/requests"
	"lendbook/service/social"
	"lendbook/storage"

	"go.uber.org/zap"
)

type Engine struct {
	Contacts      *contacts.Service
	Catalog       *catalog.Service
	Ledger        *ledger.Service
	Requests      *requests.Service
	Notifications *notify.Dispatcher
	Groups        *groups.Service
	Social        *social.Service
}

func New(store storage.Store, log *zap.Logger) *Engine {
	n := notify.New(store, log.Named("notify"))
	c := contacts.New(store, log.Named("contacts"))
	l := ledger.New(store, n, log.Named("ledger"))
	return &Engine{
		Contacts:      c,
		Catalog:       catalog.New(store, log.Named("catalog")),
		Ledger:        l,
		Requests:      requests.New(store, c, l, n, log.Named("requests")),
		Notifications: n,
		Groups:        groups.New(store, log.Named("groups")),
		Social:        social.New(store, log.Named("social")),
	}
}
