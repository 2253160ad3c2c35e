package vec

import "math"

// Vec2 представляет 2D координаты колонки мира (X — восток, Y — юг по оси Z)
type Vec2 struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Equals проверяет равенство координат
func (v Vec2) Equals(other Vec2) bool {
	return v.X == other.X && v.Y == other.Y
}

// DistanceTo вычисляет расстояние до другой точки
func (v Vec2) DistanceTo(other Vec2) float64 {
	dx := float64(v.X - other.X)
	dy := float64(v.Y - other.Y)
	return math.Sqrt(dx*dx + dy*dy)
}
