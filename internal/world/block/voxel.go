package block

// Voxel - значение одной ячейки сетки мира. Копируется по значению.
type Voxel struct {
	ID BlockID `json:"id"`
}

// Air - прозрачный воксель по умолчанию
var Air = Voxel{ID: AirBlockID}

// NewVoxel создает воксель с указанным материалом
func NewVoxel(id BlockID) Voxel {
	return Voxel{ID: id}
}

// IsTransparent истинно только для материала с ID 0
func (v Voxel) IsTransparent() bool {
	return v.ID == AirBlockID
}

func (v Voxel) String() string {
	return NameOf(v.ID)
}
