// Package textutil normalises free text coming from external catalogs before
// it is shown to operators or sent to the publisher.
package textutil
