// Package jwt issues and verifies the signed tokens carried in the netapi session
// cookie. A token binds a session ID; it carries no profile or permission data.
package jwt
