package world

import (
	"math"
	"math/rand"

	"github.com/Jplayz2468/Voxel-Game/internal/util"
	"github.com/Jplayz2468/Voxel-Game/internal/vec"
)

// TerrainGenerator заполняет пустую решётку стартовым рельефом.
// Генерация выполняется один раз до первого тика; после неё вызывающий
// обязан пересчитать высоты и сбросить накопленные дельты.
type TerrainGenerator interface {
	Generate(grid *VoxelGrid)
}

// Константы плоского плато: толщина колонки в ячейках
const (
	flatMinThickness = 14
	flatMaxThickness = 18
)

// FlatGenerator — плоское плато со случайной толщиной колонок.
// Каждая колонка сплошная от BaseHeight вверх.
type FlatGenerator struct {
	Seed int64
}

// NewFlatGenerator создаёт генератор плато
func NewFlatGenerator(seed int64) *FlatGenerator {
	return &FlatGenerator{Seed: seed}
}

// Generate заполняет решётку плато толщиной 14..18 ячеек на колонку
func (fg *FlatGenerator) Generate(grid *VoxelGrid) {
	rng := rand.New(rand.NewSource(fg.Seed))
	for z := 0; z < Size; z++ {
		for x := 0; x < Size; x++ {
			thickness := flatMinThickness + rng.Intn(flatMaxThickness-flatMinThickness+1)
			for y := BaseHeight; y < BaseHeight+thickness; y++ {
				grid.Set(x, y, z, true)
			}
		}
	}
}

// Параметры шумового рельефа
const (
	noiseOctaves      = 6   // Число октав фрактального шума
	noiseScale        = 0.03
	noisePower        = 1.3 // Степенная кривая: поджимает низины
	noiseFlatten      = 0.9 // Общий коэффициент сглаживания рельефа
	noiseMinThickness = 10
	noiseMaxThickness = 26

	treeSpacing  = 6.0 // Минимальное расстояние между деревьями
	treeMaxSlope = 2   // Максимальный перепад высоты соседних колонок под деревом
	treeMargin   = 8   // Отступ посадки от края мира
)

// NoiseGenerator — фрактальный рельеф на шуме Перлина с посадкой деревьев.
// Высота колонки получается из шести октав шума, степенной кривой и
// коэффициента сглаживания; деревья сажаются на пологих колонках с
// соблюдением минимального расстояния между ними.
type NoiseGenerator struct {
	Seed      int64
	TreeCount int

	noise *util.NoiseMap
}

// NewNoiseGenerator создаёт шумовой генератор с заданным числом деревьев
func NewNoiseGenerator(seed int64, treeCount int) *NoiseGenerator {
	return &NoiseGenerator{
		Seed:      seed,
		TreeCount: treeCount,
		noise:     util.NewNoiseMap(seed, noiseOctaves, noiseScale),
	}
}

// thicknessAt возвращает толщину колонки рельефа в ячейках
func (ng *NoiseGenerator) thicknessAt(x, z int) int {
	h := ng.noise.Sample(float64(x), float64(z))
	shaped := math.Pow(h, noisePower) * noiseFlatten
	thickness := noiseMinThickness + int(shaped*float64(noiseMaxThickness-noiseMinThickness))
	if thickness < noiseMinThickness {
		thickness = noiseMinThickness
	}
	if thickness > noiseMaxThickness {
		thickness = noiseMaxThickness
	}
	return thickness
}

// Generate заполняет решётку рельефом и сажает деревья
func (ng *NoiseGenerator) Generate(grid *VoxelGrid) {
	thickness := make([]int, Size*Size)
	for z := 0; z < Size; z++ {
		for x := 0; x < Size; x++ {
			t := ng.thicknessAt(x, z)
			thickness[z*Size+x] = t
			for y := BaseHeight; y < BaseHeight+t; y++ {
				grid.Set(x, y, z, true)
			}
		}
	}

	ng.plantTrees(grid, thickness)
}

// plantTrees сажает до TreeCount деревьев на пологих колонках.
// Кеш высот во время генерации ещё не пересчитан, поэтому уровень земли
// берётся из локальной карты толщин, а не из ColumnHeight.
func (ng *NoiseGenerator) plantTrees(grid *VoxelGrid, thickness []int) {
	rng := rand.New(rand.NewSource(ng.Seed + 42))
	planted := make([]vec.Vec2, 0, ng.TreeCount)

	attempts := ng.TreeCount * 10
	for i := 0; i < attempts && len(planted) < ng.TreeCount; i++ {
		x := treeMargin + rng.Intn(Size-2*treeMargin)
		z := treeMargin + rng.Intn(Size-2*treeMargin)
		col := vec.Vec2{X: x, Y: z}

		if !ng.slopeOK(thickness, x, z) {
			continue
		}

		tooClose := false
		for _, p := range planted {
			if p.DistanceTo(col) < treeSpacing {
				tooClose = true
				break
			}
		}
		if tooClose {
			continue
		}

		groundY := BaseHeight + thickness[z*Size+x]
		if PlantTree(grid, x, groundY, z, rng) {
			planted = append(planted, col)
		}
	}
}

// slopeOK проверяет, что перепад высоты с четырьмя соседями не превышает treeMaxSlope
func (ng *NoiseGenerator) slopeOK(thickness []int, x, z int) bool {
	t := thickness[z*Size+x]
	neighbors := [4]vec.Vec2{
		{X: x - 1, Y: z}, {X: x + 1, Y: z},
		{X: x, Y: z - 1}, {X: x, Y: z + 1},
	}
	for _, n := range neighbors {
		if n.X < 0 || n.X >= Size || n.Y < 0 || n.Y >= Size {
			return false
		}
		diff := thickness[n.Y*Size+n.X] - t
		if diff < 0 {
			diff = -diff
		}
		if diff > treeMaxSlope {
			return false
		}
	}
	return true
}
