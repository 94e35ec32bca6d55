package cms

import (
	"github.com/edgecomet/revalidator/pkg/types"
)

type collectionQuery struct {
	field string
	query string
}

var collectionQueries = map[types.Collection]collectionQuery{
	types.CollectionDocuments: {
		field: "pages",
		query: `query SitemapDocuments($first: Int!, $after: String, $language: LanguageCodeFilterEnum!) {
  pages(first: $first, after: $after, where: {language: $language, status: PUBLISH}) {
    pageInfo { hasNextPage endCursor }
    nodes { slug date }
  }
}`,
	},
	types.CollectionArticles: {
		field: "posts",
		query: `query SitemapArticles($first: Int!, $after: String, $language: LanguageCodeFilterEnum!) {
  posts(first: $first, after: $after, where: {language: $language, status: PUBLISH, orderby: {field: DATE, order: DESC}}) {
    pageInfo { hasNextPage endCursor }
    nodes { slug date title categories { nodes { slug } } }
  }
}`,
	},
	types.CollectionCategories: {
		field: "categories",
		query: `query SitemapCategories($first: Int!, $after: String, $language: LanguageCodeFilterEnum!) {
  categories(first: $first, after: $after, where: {language: $language, hideEmpty: true}) {
    pageInfo { hasNextPage endCursor }
    nodes { slug }
  }
}`,
	},
	types.CollectionTags: {
		field: "tags",
		query: `query SitemapTags($first: Int!, $after: String, $language: LanguageCodeFilterEnum!) {
  tags(first: $first, after: $after, where: {language: $language, hideEmpty: true}) {
    pageInfo { hasNextPage endCursor }
    nodes { slug }
  }
}`,
	},
}
