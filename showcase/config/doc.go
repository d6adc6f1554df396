// Package config loads the publisher configuration from
// defaults, an optional YAML file, and the environment, and
// builds the matching git.Provider and publisher.Publisher.
package config
