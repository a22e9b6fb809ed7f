package ai

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/cloudwego/eino-ext/components/tool/duckduckgo/v2"
	"github.com/cloudwego/eino-ext/components/tool/googlesearch"
	"github.com/cloudwego/eino/components/tool"
)

// Research tools let the drafting agent check health claims before they
// land in a script. Google is preferred when credentials are present;
// DuckDuckGo needs no token and is always attempted.
func initResearchTools() []tool.BaseTool {
	var tools []tool.BaseTool
	if g := initGoogleSearch(); g != nil {
		tools = append(tools, g)
	}
	if d := initDuckDuckGoSearch(); d != nil {
		tools = append(tools, d)
	}
	return tools
}

func initDuckDuckGoSearch() tool.BaseTool {
	t, err := duckduckgo.NewTextSearchTool(context.Background(), &duckduckgo.Config{
		ToolName:   "health_web_search",
		ToolDesc:   "Search the web to verify medical and health claims before putting them in a script (no token required)",
		MaxResults: 3,
		Region:     duckduckgo.RegionWT,
		Timeout:    10 * time.Second,
	})
	if err != nil {
		log.Printf("duckduckgo research tool disabled: %v", err)
		return nil
	}
	return t
}

func initGoogleSearch() tool.BaseTool {
	apiKey := os.Getenv("GOOGLE_API_KEY")
	engineID := os.Getenv("GOOGLE_SEARCH_ENGINE_ID")
	if apiKey == "" || engineID == "" {
		return nil
	}
	t, err := googlesearch.NewTool(context.Background(), &googlesearch.Config{
		ToolName:       "health_web_search_google",
		ToolDesc:       "Google search for verifying medical and health claims",
		APIKey:         apiKey,
		SearchEngineID: engineID,
		Lang:           "en",
		Num:            5,
	})
	if err != nil {
		log.Printf("google research tool disabled: %v", err)
		return nil
	}
	return t
}
