package geom

import "testing"

func TestVector3(t *testing.T) {
	v1 := NewVector3(1, 2, 3)
	v2 := NewVector3(4, 5, 6)

	if got := v1.Add(v2); *got != (Vector3{5, 7, 9}) {
		t.Errorf("Add: %v", got)
	}
	if got := v2.Sub(v1); *got != (Vector3{3, 3, 3}) {
		t.Errorf("Sub: %v", got)
	}
	if got := v1.Dot(v2); got != 32 {
		t.Errorf("Dot: %v", got)
	}
	if got := NewVector3(1, 0, 0).Cross(NewVector3(0, 1, 0)); *got != (Vector3{0, 0, 1}) {
		t.Errorf("Cross: %v", got)
	}
	if got := NewVector3(3, 4, 0).Len(); got != 5 {
		t.Errorf("Len: %v", got)
	}
	if got := NewVector3(0, 3, 0).Normalize(); *got != (Vector3{0, 1, 0}) {
		t.Errorf("Normalize: %v", got)
	}
	if got := NewVector3(0, 0, 0).Normalize(); *got != (Vector3{1, 0, 0}) {
		t.Errorf("Normalize zero: %v", got)
	}
}

func TestVector2(t *testing.T) {
	v1 := NewVector2(1, 2)
	v2 := NewVector2(3, 4)

	if got := v1.Add(v2); *got != (Vector2{4, 6}) {
		t.Errorf("Add: %v", got)
	}
	if got := v1.Dot(v2); got != 11 {
		t.Errorf("Dot: %v", got)
	}
	if got := NewVector2(3, 4).Len(); got != 5 {
		t.Errorf("Len: %v", got)
	}
}
