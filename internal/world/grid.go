package world

import (
	"github.com/Jplayz2468/Voxel-Game/internal/vec"
)

const (
	// Size — ребро кубического мира в ячейках.
	Size = 128

	// BaseHeight — уровень основания рельефа; колонки рельефа растут от него.
	BaseHeight = Size / 4
)

// CellDelta описывает одно изменение ячейки за тик: установку или снятие вокселя.
type CellDelta struct {
	Pos   vec.Vec3i `json:"pos"`
	Solid bool      `json:"solid"`
}

// VoxelGrid — плотное хранилище занятости ячеек мира плюс производный
// кеш высот колонок. Высота колонки — это ЧИСЛО занятых ячеек в колонке,
// а не координата верхней ячейки; уровень земли считается как
// BaseHeight + ColumnHeight, что точно, пока колонка остаётся сплошной
// от основания.
//
/// Структура не потокобезопасна: все мутации происходят из горутины тика
// симуляции, внешние читатели получают снапшоты по завершении тика.
type VoxelGrid struct {
	cells      []bool // Size³, индекс (y*Size+z)*Size+x
	heights    []int  // Size², индекс z*Size+x
	solidCells int

	// Накопители изменений текущего тика.
	heightsStale bool
	dirtyCols    map[vec.Vec2]struct{}
	deltas       []CellDelta
}

// NewVoxelGrid создаёт пустой мир
func NewVoxelGrid() *VoxelGrid {
	return &VoxelGrid{
		cells:     make([]bool, Size*Size*Size),
		heights:   make([]int, Size*Size),
		dirtyCols: make(map[vec.Vec2]struct{}),
	}
}

// InBounds проверяет попадание координат в границы мира
func InBounds(x, y, z int) bool {
	return x >= 0 && x < Size && y >= 0 && y < Size && z >= 0 && z < Size
}

func cellIndex(x, y, z int) int {
	return (y*Size+z)*Size + x
}

// Get возвращает занятость ячейки. Любая координата вне границ — пустота,
// без паники: физика опирается на это при выборке у краёв мира.
func (g *VoxelGrid) Get(x, y, z int) bool {
	if !InBounds(x, y, z) {
		return false
	}
	return g.cells[cellIndex(x, y, z)]
}

// GetCell возвращает занятость ячейки по адресу решётки
func (g *VoxelGrid) GetCell(c vec.Vec3i) bool {
	return g.Get(c.X, c.Y, c.Z)
}

// Set записывает занятость ячейки. Возвращает false без записи, если
// координаты вне границ или значение не меняется. Успешная запись помечает
// кеш высот устаревшим и добавляет колонку и дельту в накопители тика.
func (g *VoxelGrid) Set(x, y, z int, solid bool) bool {
	if !InBounds(x, y, z) {
		return false
	}
	i := cellIndex(x, y, z)
	if g.cells[i] == solid {
		return false
	}
	g.cells[i] = solid
	if solid {
		g.solidCells++
	} else {
		g.solidCells--
	}

	g.heightsStale = true
	g.dirtyCols[vec.Vec2{X: x, Y: z}] = struct{}{}
	g.deltas = append(g.deltas, CellDelta{Pos: vec.Vec3i{X: x, Y: y, Z: z}, Solid: solid})
	return true
}

// SetCell записывает занятость ячейки по адресу решётки
func (g *VoxelGrid) SetCell(c vec.Vec3i, solid bool) bool {
	return g.Set(c.X, c.Y, c.Z, solid)
}

// ColumnHeight возвращает кешированное число занятых ячеек в колонке.
// Вне границ — 0. Значение может отставать от последних Set до вызова
// RebuildHeights.
func (g *VoxelGrid) ColumnHeight(x, z int) int {
	if x < 0 || x >= Size || z < 0 || z >= Size {
		return 0
	}
	return g.heights[z*Size+x]
}

// HeightsStale сообщает, были ли мутации ячеек после последнего пересчёта высот
func (g *VoxelGrid) HeightsStale() bool {
	return g.heightsStale
}

// RebuildHeights полностью пересчитывает кеш высот за O(Size³).
/// Вызывается не чаще раза за тик: признак устаревания копится по записям,
// а не пересчитывается на каждую.
func (g *VoxelGrid) RebuildHeights() {
	for z := 0; z < Size; z++ {
		for x := 0; x < Size; x++ {
			count := 0
			for y := 0; y < Size; y++ {
				if g.cells[cellIndex(x, y, z)] {
					count++
				}
			}
			g.heights[z*Size+x] = count
		}
	}
	g.heightsStale = false
}

// ConsumeDirty возвращает накопленные за тик изменения и очищает накопители.
// changed=false означает, что рельеф в этом тике не менялся.
func (g *VoxelGrid) ConsumeDirty() (cols []vec.Vec2, deltas []CellDelta, changed bool) {
	if len(g.deltas) == 0 && len(g.dirtyCols) == 0 {
		return nil, nil, false
	}

	cols = make([]vec.Vec2, 0, len(g.dirtyCols))
	for col := range g.dirtyCols {
		cols = append(cols, col)
	}
	deltas = g.deltas

	g.dirtyCols = make(map[vec.Vec2]struct{})
	g.deltas = nil
	return cols, deltas, true
}

// SolidCells возвращает текущее число занятых ячеек
func (g *VoxelGrid) SolidCells() int {
	return g.solidCells
}

// HeightBounds возвращает минимальную и максимальную высоту колонок по кешу
func (g *VoxelGrid) HeightBounds() (minH, maxH int) {
	minH = g.heights[0]
	maxH = g.heights[0]
	for _, h := range g.heights {
		if h < minH {
			minH = h
		}
		if h > maxH {
			maxH = h
		}
	}
	return minH, maxH
}

// PackBits упаковывает занятость всех ячеек в битовую маску для передачи
// клиенту при подключении: бит i соответствует ячейке с индексом i,
// порядок обхода совпадает с cellIndex.
func (g *VoxelGrid) PackBits() []byte {
	packed := make([]byte, (Size*Size*Size+7)/8)
	for i, solid := range g.cells {
		if solid {
			packed[i/8] |= 1 << (i % 8)
		}
	}
	return packed
}
