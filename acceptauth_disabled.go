//go:build noacceptauth

package tollgate

// acceptAuthRequired is off in this build: every request without a valid
// token is challenged, whether or not it announced challenge support.
const acceptAuthRequired = false
