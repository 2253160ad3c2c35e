package vec

import "math"

// Vec2Float представляет двумерный вектор с плавающими координатами.
// Используется для горизонтальной плоскости движения (X — восток,
// Y — юг по мировой оси Z).
type Vec2Float struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add складывает два вектора
func (v Vec2Float) Add(other Vec2Float) Vec2Float {
	return Vec2Float{X: v.X + other.X, Y: v.Y + other.Y}
}

// Mul умножает вектор на скаляр
func (v Vec2Float) Mul(scalar float64) Vec2Float {
	return Vec2Float{X: v.X * scalar, Y: v.Y * scalar}
}

// Length возвращает длину вектора
func (v Vec2Float) Length() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y)
}

// Normalized возвращает нормализованный вектор.
// Для нулевого вектора возвращает нулевой вектор, а не NaN.
func (v Vec2Float) Normalized() Vec2Float {
	length := v.Length()
	if length == 0 {
		return Vec2Float{}
	}
	return Vec2Float{X: v.X / length, Y: v.Y / length}
}
