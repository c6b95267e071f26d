package services

import (
	"context"

	"gitty.dev/cli/internal/core/ports"
)

// Inventory mirrors the fields of git count-objects -v
type Inventory struct {
	Count    int   // loose objects
	Size     int64 // loose bytes on disk
	InPack   int   // objects across all packs
	Packs    int
	SizePack int64 // .pack plus .idx bytes
}

// InventoryService counts what the object database holds
type InventoryService struct {
	loose []ports.LooseStats
	packs ports.PackStats
}

// NewInventoryService creates an inventory over the primary loose store
// (and any alternates) and the pack set
func NewInventoryService(packs ports.PackStats, loose ...ports.LooseStats) *InventoryService {
	return &InventoryService{loose: loose, packs: packs}
}

// Count tallies loose and packed objects
func (s *InventoryService) Count(ctx context.Context) (Inventory, error) {
	var inv Inventory
	for _, l := range s.loose {
		n, size, err := l.Stat(ctx)
		if err != nil {
			return Inventory{}, err
		}
		inv.Count += n
		inv.Size += size
	}

	if s.packs != nil {
		for _, p := range s.packs.Stats() {
			inv.Packs++
			inv.InPack += p.Objects
			inv.SizePack += p.PackBytes + p.IndexBytes
		}
	}
	return inv, nil
}
