package events

import "fmt"

// Topic prefixes for rigcore MQTT traffic.
//
// All topics use the flat scheme: rigcore/{category}/...
const (
	// TopicPrefix is the base for all rigcore topics.
	TopicPrefix = "rigcore"

	// TopicPrefixRecipe is the base for recipe store topics.
	TopicPrefixRecipe = "rigcore/recipe"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "rigcore/system"
)

// Topics provides builders for rigcore MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := events.Topics{}
//	topic := topics.Transaction("activate_recipe")
//	// Returns: "rigcore/recipe/transaction/activate_recipe"
type Topics struct{}

// Transaction returns the topic for a committed transaction of the
// given operation.
//
// Example: rigcore/recipe/transaction/add_device
func (Topics) Transaction(operation string) string {
	return fmt.Sprintf("%s/transaction/%s", TopicPrefixRecipe, operation)
}

// ActiveRecipe returns the retained topic carrying the currently
// active recipe id.
//
// Example: rigcore/recipe/active
func (Topics) ActiveRecipe() string {
	return fmt.Sprintf("%s/active", TopicPrefixRecipe)
}

// SystemStatus returns the system status topic. Online, offline and
// Last Will messages are published here, retained.
//
// Example: rigcore/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllTransactions returns a pattern matching every transaction event.
//
// Pattern: rigcore/recipe/transaction/+
func (Topics) AllTransactions() string {
	return fmt.Sprintf("%s/transaction/+", TopicPrefixRecipe)
}

// AllTopics returns a pattern matching all rigcore topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: rigcore/#
func (Topics) AllTopics() string {
	return TopicPrefix + "/#"
}
