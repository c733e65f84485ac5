// Package components defines the pressure model's data types: channels, species
// profiles, world events, and the ECS components the host world carries.
package components
