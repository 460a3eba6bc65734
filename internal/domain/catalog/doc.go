// Package catalog contains the marketplace catalog: products and categories
// synced from merchant stores, and the slug rules that give them stable URLs.
package catalog
