package components

// Position represents an agent's world position in the host ECS world.
type Position struct {
	X, Y float32
}
