package handler

import (
	"pairchat/backend/internal/chathub"
	"pairchat/backend/internal/config"
	"pairchat/backend/internal/storage"
)

// Handler wires the HTTP surface to the hub and storage.
type Handler struct {
	Hub     *chathub.ManagerService
	Storage storage.Storage
	Cfg     config.Config
}

func NewHandler(hub *chathub.ManagerService, s storage.Storage, cfg config.Config) *Handler {
	return &Handler{Hub: hub, Storage: s, Cfg: cfg}
}
