package world

// Источник и типы событий мира в шине событий
const (
	EventSource          = "world"
	EventChunkGenerated  = "chunk_generated"
	EventChunksCommitted = "chunks_committed"
)

// ChunkGeneratedEvent публикуется после вставки нового чанка в мир
type ChunkGeneratedEvent struct {
	Position    ChunkPosition `json:"position"`
	SolidVoxels int           `json:"solid_voxels"`
}

// ChunksCommittedEvent публикуется после фиксации, затронувшей хотя бы один чанк
type ChunksCommittedEvent struct {
	Stats CommitStats     `json:"stats"`
	Dirty []ChunkPosition `json:"dirty"`
}
