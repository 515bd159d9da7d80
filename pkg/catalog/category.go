package catalog

import "strings"

// Category groups connectors by the kind of system they integrate with.
type Category string

const (
	CategoryDatabases     Category = "Databases"
	CategoryFileSystems   Category = "FileSystems"
	CategoryStreaming     Category = "Streaming"
	CategoryCRM           Category = "CRM"
	CategoryECommerce     Category = "ECommerce"
	CategoryMarketing     Category = "MarketingAdvertising"
	CategoryVectorDB      Category = "VectorDatabases"
	CategoryLLMs          Category = "LLMs"
	CategoryDataAsService Category = "DataAsAService"
	CategoryCybersecurity Category = "Cybersecurity"
	CategoryGenericAPIs   Category = "GenericAPIs"
	CategoryOther         Category = "Other"
)

// CategoryRule matches connector display names against a set of
// case-insensitive substrings.
type CategoryRule struct {
	Category Category
	Patterns []string
}

// CategoryRules is the declared priority order for categorization.
// First match wins. A name matching several rules must always resolve
// to the earliest one, so this order is part of the contract and is
// asserted on directly by tests. Do not reorder.
var CategoryRules = []CategoryRule{
	{CategoryDatabases, []string{
		"postgres", "mysql", "mariadb", "bigquery", "snowflake", "redshift",
		"mongo", "oracle", "db2", "clickhouse", "cassandra", "dynamodb",
		"cockroach", "duckdb", "sqlite", "sql server", "mssql",
	}},
	{CategoryFileSystems, []string{
		"s3", "gcs", "google cloud storage", "azure blob", "ftp", "sftp",
		"dropbox", "google drive", "onedrive", "box", "local file", "webdav",
	}},
	{CategoryStreaming, []string{
		"kafka", "kinesis", "pub/sub", "pubsub", "pulsar", "rabbitmq",
		"mqtt", "event hub", "nats",
	}},
	{CategoryCRM, []string{
		"salesforce", "hubspot", "zoho", "pipedrive", "zendesk", "intercom",
		"freshdesk", "crm",
	}},
	{CategoryECommerce, []string{
		"shopify", "woocommerce", "magento", "bigcommerce", "prestashop",
		"amazon seller", "ebay", "etsy", "squarespace",
	}},
	{CategoryMarketing, []string{
		"google ads", "facebook ads", "facebook marketing", "tiktok",
		"mailchimp", "marketo", "klaviyo", "braze", "google analytics",
		"mixpanel", "amplitude", "ads",
	}},
	{CategoryVectorDB, []string{
		"pinecone", "weaviate", "qdrant", "milvus", "chroma", "vector",
	}},
	{CategoryLLMs, []string{
		"openai", "anthropic", "gemini", "cohere", "mistral", "gpt", "llm",
		"hugging face", "huggingface",
	}},
	{CategoryDataAsService, []string{
		"clearbit", "crunchbase", "apollo.io", "people data labs",
	}},
	{CategoryCybersecurity, []string{
		"splunk", "crowdstrike", "okta", "sentinelone", "datadog security",
		"wiz",
	}},
	{CategoryGenericAPIs, []string{
		"api", "rest", "graphql", "webhook", "http",
	}},
}

// Categorize maps a connector display name to exactly one category.
// Pure and total: the same name always yields the same category, and
// anything no rule claims falls through to Other.
func Categorize(name string) Category {
	lower := strings.ToLower(name)
	for _, rule := range CategoryRules {
		for _, pattern := range rule.Patterns {
			if strings.Contains(lower, pattern) {
				return rule.Category
			}
		}
	}
	return CategoryOther
}
