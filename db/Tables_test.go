package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidTableName(t *testing.T) {
	assert.True(t, ValidTableName("wp_posts"))
	assert.True(t, ValidTableName("wp_wc_orders_2024"))
	assert.False(t, ValidTableName(""))
	assert.False(t, ValidTableName("wp_posts; DROP TABLE wp_users"))
	assert.False(t, ValidTableName("wp_posts`"))
	assert.False(t, ValidTableName("wp posts"))
	assert.False(t, ValidTableName("wp-posts"))
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, "`wp_posts`", QuoteIdent("wp_posts"))
}

func TestTableResolvers(t *testing.T) {
	tables := NewTables("wp_", false)

	assert.Equal(t, "wp_posts", tables.Posts())
	assert.Equal(t, "wp_postmeta", tables.Postmeta())
	assert.Equal(t, "wp_term_taxonomy", tables.TermTaxonomy())
	assert.Equal(t, "wp_options", tables.Options())
}

func TestHasPrefixAndStripPrefix(t *testing.T) {
	tables := NewTables("wp_", false)

	assert.True(t, tables.HasPrefix("wp_custom_table"))
	assert.False(t, tables.HasPrefix("other_table"))
	assert.Equal(t, "custom_table", tables.StripPrefix("wp_custom_table"))
}

func TestCoreTablesSingleSite(t *testing.T) {
	tables := NewTables("wp_", false)
	core := tables.CoreTables()

	assert.True(t, core["wp_posts"])
	assert.True(t, core["wp_links"])
	assert.False(t, core["wp_blogs"])
	assert.False(t, core["wp_wc_orders"])
}

func TestCoreTablesMultisite(t *testing.T) {
	tables := NewTables("wp_", true)
	core := tables.CoreTables()

	assert.True(t, core["wp_posts"])
	assert.True(t, core["wp_blogs"])
	assert.True(t, core["wp_sitemeta"])
}

func TestSiteTransientsInOptions(t *testing.T) {
	assert.True(t, NewTables("wp_", false).SiteTransientsInOptions())
	assert.False(t, NewTables("wp_", true).SiteTransientsInOptions())
}
