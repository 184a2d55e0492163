// Package view holds the JSON shapes exchanged between the API server and its clients.
package view
