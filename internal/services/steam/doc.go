// Package steam fetches store metadata for Steam apps and downloads their
// published images.
package steam
