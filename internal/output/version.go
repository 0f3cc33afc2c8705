package output

// SchemaVersion is the current version of the NDJSON output schema.
// Increment this when making breaking changes to the output format.
// Consumers can use this to detect schema changes and adapt accordingly.
const SchemaVersion = 1
