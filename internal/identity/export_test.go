package identity

// ModelFrom exposes modelFrom to tests.
var ModelFrom = modelFrom
