// Package wordpress is a client for the subset of the WordPress REST API the
// publisher needs: categories, tags, media and posts. Requests authenticate
// with an application password over HTTP basic auth.
package wordpress
