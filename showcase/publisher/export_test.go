package publisher

// Exported aliases for testing internal functions from
// the publisher_test package.

// WithDefaultsForTest exposes withDefaults.
var WithDefaultsForTest = withDefaults

// TemplateVarsForTest exposes templateVars.
var TemplateVarsForTest = templateVars
