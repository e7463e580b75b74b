// Package session tracks gateway connections in Redis: which server holds a
// connection, which user identified on it and when it was last active. It
// lets any instance answer whether a user is currently online.
package session
