package main

import (
	"fmt"
	"strings"

	"github.com/annel0/voxel-engine/internal/eventbus"
	"github.com/annel0/voxel-engine/internal/world"
)

type eventType struct {
	Name        string
	Description string
}

var knownTypes = []eventType{
	{world.EventChunkGenerated, "новый чанк сгенерирован и вставлен в мир"},
	{world.EventChunksCommitted, "фиксация правок изменила хотя бы один чанк"},
}

// formatEvent выводит событие в читаемом формате, с деталями для известных типов
func formatEvent(ev *eventbus.Envelope) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s [%s] %s\n",
		ev.Timestamp.Format("15:04:05"),
		ev.Source,
		ev.EventType,
		ev.ID)

	switch ev.EventType {
	case world.EventChunkGenerated:
		var e world.ChunkGeneratedEvent
		if err := ev.Decode(&e); err != nil {
			fmt.Fprintf(&b, "  ⚠️ %v\n", err)
			break
		}
		fmt.Fprintf(&b, "  Chunk: %s Solid: %d\n", e.Position, e.SolidVoxels)
	case world.EventChunksCommitted:
		var e world.ChunksCommittedEvent
		if err := ev.Decode(&e); err != nil {
			fmt.Fprintf(&b, "  ⚠️ %v\n", err)
			break
		}
		fmt.Fprintf(&b, "  Changes: %d in %d chunks, borders: %d propagated, %d synced\n",
			e.Stats.ChangesApplied, e.Stats.ChunksEdited, e.Stats.BordersPropagated, e.Stats.BordersSynced)
		fmt.Fprintf(&b, "  Dirty: %d chunks\n", len(e.Dirty))
	}
	return b.String()
}

// parseStringList парсит строку с разделителями-запятыми
func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
