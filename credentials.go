package authstack

// credentialVerifier wraps a PasswordHasher so malformed stored hashes read
// as a failed match instead of an error. Login must not distinguish "wrong
// password" from "corrupt hash" to the caller.
type credentialVerifier struct {
	hasher PasswordHasher
}

func (v credentialVerifier) verify(password, storedHash string) bool {
	if password == "" || storedHash == "" {
		return false
	}
	ok, err := v.hasher.Verify(password, storedHash)
	if err != nil {
		return false
	}
	return ok
}
