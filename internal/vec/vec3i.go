package vec

import "math"

// Vec3i представляет трёхмерный вектор с целочисленными координатами —
// адрес ячейки воксельной решётки.
type Vec3i struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

// Add складывает два вектора
func (v Vec3i) Add(other Vec3i) Vec3i {
	return Vec3i{X: v.X + other.X, Y: v.Y + other.Y, Z: v.Z + other.Z}
}

// Equals проверяет равенство векторов
func (v Vec3i) Equals(other Vec3i) bool {
	return v.X == other.X && v.Y == other.Y && v.Z == other.Z
}

// Center возвращает центр ячейки в непрерывных координатах.
// Ячейка (x,y,z) занимает куб [x,x+1)³, её центр — (x+0.5, y+0.5, z+0.5).
func (v Vec3i) Center() Vec3 {
	return Vec3{X: float64(v.X) + 0.5, Y: float64(v.Y) + 0.5, Z: float64(v.Z) + 0.5}
}

// ToVec3 преобразует в непрерывные координаты (угол ячейки)
func (v Vec3i) ToVec3() Vec3 {
	return Vec3{X: float64(v.X), Y: float64(v.Y), Z: float64(v.Z)}
}

// DistanceTo вычисляет расстояние до другой ячейки
func (v Vec3i) DistanceTo(other Vec3i) float64 {
	dx := float64(v.X - other.X)
	dy := float64(v.Y - other.Y)
	dz := float64(v.Z - other.Z)
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// ToColumn возвращает координаты колонки (X, Z), игнорируя высоту
func (v Vec3i) ToColumn() Vec2 {
	return Vec2{X: v.X, Y: v.Z}
}
