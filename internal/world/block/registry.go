package block

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrUnknownMaterial возвращается, когда материал не найден в реестре
var ErrUnknownMaterial = errors.New("unknown material")

// BlockID представляет идентификатор материала вокселя
type BlockID uint16

// Константы ID блоков
const (
	// Базовые типы блоков
	AirBlockID   BlockID = iota // 0, единственный прозрачный
	StoneBlockID                // 1
	GrassBlockID                // 2
	WaterBlockID                // 3
	SandBlockID                 // 4
	DirtBlockID                 // 5

	// Руды и декоративные блоки (начиная с 100)
	GravelBlockID BlockID = 100
	CoalBlockID   BlockID = 101
)

// Material описывает зарегистрированный материал
type Material struct {
	ID   BlockID `json:"id"`
	Name string  `json:"name"`
}

var (
	registryMu sync.RWMutex
	registry   = make(map[BlockID]Material)
	byName     = make(map[string]BlockID)
)

func init() {
	Register(AirBlockID, "air")
	Register(StoneBlockID, "stone")
	Register(GrassBlockID, "grass")
	Register(WaterBlockID, "water")
	Register(SandBlockID, "sand")
	Register(DirtBlockID, "dirt")
	Register(GravelBlockID, "gravel")
	Register(CoalBlockID, "coal")
}

// Register добавляет материал в реестр. Повторная регистрация ID заменяет имя.
func Register(id BlockID, name string) {
	name = strings.ToLower(name)

	registryMu.Lock()
	defer registryMu.Unlock()

	if old, ok := registry[id]; ok {
		delete(byName, old.Name)
	}
	registry[id] = Material{ID: id, Name: name}
	byName[name] = id
}

// Get возвращает материал для указанного ID
func Get(id BlockID) (Material, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	m, exists := registry[id]
	return m, exists
}

// Lookup ищет материал по имени (без учета регистра)
func Lookup(name string) (Material, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	id, ok := byName[strings.ToLower(name)]
	if !ok {
		return Material{}, fmt.Errorf("material %q: %w", name, ErrUnknownMaterial)
	}
	return registry[id], nil
}

// IsValidBlockID проверяет, является ли ID зарегистрированным материалом
func IsValidBlockID(id BlockID) bool {
	_, exists := Get(id)
	return exists
}

// NameOf возвращает имя материала или "unknown(<id>)"
func NameOf(id BlockID) string {
	if m, ok := Get(id); ok {
		return m.Name
	}
	return fmt.Sprintf("unknown(%d)", id)
}

// Materials возвращает все материалы, отсортированные по ID
func Materials() []Material {
	registryMu.RLock()
	defer registryMu.RUnlock()

	out := make([]Material, 0, len(registry))
	for _, m := range registry {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
