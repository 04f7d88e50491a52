package sources

import "curator/internal/core"

var defaultSources = []core.SourceDescriptor{
	// Shopify and ecommerce
	{Name: "Shopify Blog", Endpoint: "https://www.shopify.com/blog/feed", Topics: []string{"shopify", "ecommerce", "development"}},
	{Name: "Shopify Engineering", Endpoint: "https://shopify.engineering/feed", Topics: []string{"shopify", "development", "performance"}},
	{Name: "Shopify Partners", Endpoint: "https://www.shopify.com/partners/blog/feed", Topics: []string{"shopify", "development", "business"}},
	{Name: "BigCommerce Blog", Endpoint: "https://www.bigcommerce.com/blog/feed/", Topics: []string{"ecommerce", "cro"}},
	{Name: "Practical Ecommerce", Endpoint: "https://www.practicalecommerce.com/feed", Topics: []string{"ecommerce", "shopify", "cro"}},

	// SEO and CRO
	{Name: "Moz Blog", Endpoint: "https://moz.com/blog/feed", Topics: []string{"seo"}},
	{Name: "Search Engine Journal", Endpoint: "https://www.searchenginejournal.com/feed/", Topics: []string{"seo"}},
	{Name: "CXL", Endpoint: "https://cxl.com/blog/feed/", Topics: []string{"cro", "conversion"}},
	{Name: "Baymard Institute", Endpoint: "https://baymard.com/blog.rss", Topics: []string{"cro", "ecommerce", "ux"}},
	{Name: "Ahrefs Blog", Endpoint: "https://ahrefs.com/blog/feed/", Topics: []string{"seo"}},

	// Performance and web development
	{Name: "web.dev", Endpoint: "https://web.dev/feed.xml", Topics: []string{"speed", "performance", "development"}},
	{Name: "Smashing Magazine", Endpoint: "https://www.smashingmagazine.com/feed/", Topics: []string{"development", "performance", "design"}},
	{Name: "CSS-Tricks", Endpoint: "https://css-tricks.com/feed/", Topics: []string{"development", "performance"}},

	// AI and LLMs
	{Name: "Anthropic News", Endpoint: "https://www.anthropic.com/feed.xml", Topics: []string{"ai", "llm"}},
	{Name: "OpenAI Blog", Endpoint: "https://openai.com/blog/rss/", Topics: []string{"ai", "llm"}},
	{Name: "Hugging Face Blog", Endpoint: "https://huggingface.co/blog/feed.xml", Topics: []string{"ai", "llm", "development"}},
	{Name: "LangChain Blog", Endpoint: "https://blog.langchain.dev/rss/", Topics: []string{"ai", "llm", "development"}},
	{Name: "Vercel Blog", Endpoint: "https://vercel.com/blog/rss.xml", Topics: []string{"ai", "development", "performance"}},
	{Name: "The Rundown AI", Endpoint: "https://www.therundown.ai/rss", Topics: []string{"ai", "llm"}},
	{Name: "AI News (Google)", Endpoint: "https://blog.google/technology/ai/rss/", Topics: []string{"ai", "llm"}},
}
