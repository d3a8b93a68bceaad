// Package rig contains the configuration model for Rigcore.
//
// A Recipe is a named set of device configurations that can be activated
// as a unit. Recipes is the full aggregate: every recipe, the active
// selection and the shared Variables table used for parameter
// substitution.
//
// # Key Types
//
//   - DeviceID / RecipeID: opaque 128-bit identifiers with a canonical
//     text form
//   - Name: validated human-readable identifier, distinct from the ids
//   - ParamsWithVars: raw device parameters that may contain variable
//     references ({"__var": "name"})
//   - Variables: substitution table resolving ParamsWithVars into
//     ResolvedParams prior to validation
//   - DeviceConfig: one device's type, name and parameters, owned by
//     exactly one Recipe
//   - Recipes: the aggregate with its active-recipe invariant
//
// All mutation of a live Recipes value goes through the recipe package's
// transaction service; the types here only enforce local invariants
// (active recipe must exist, device ids are unique per recipe, names are
// well-formed).
package rig
