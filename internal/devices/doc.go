// Package devices maps device type tags to drivers and adapts them to
// the actions the recipe service needs: validating configurations,
// pushing parameter updates to running actors and spawning actors for
// an activated recipe.
package devices
