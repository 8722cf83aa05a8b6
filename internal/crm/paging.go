package crm

import (
	"net/url"
	"strings"
)

// OpportunitiesRoute is this service's listing route; CRM paging links are rewritten onto it.
const OpportunitiesRoute = "/orders/opportunities"

// RewriteNextPageURL converts a CRM next-page link into this service's own query shape, keeping
// limit, the stage (as stageIds), startAfter and startAfterId. Unparseable links yield "".
func RewriteNextPageURL(publicURL, original string) string {
	if strings.TrimSpace(original) == "" {
		return ""
	}
	parsed, err := url.Parse(original)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return ""
	}
	params := parsed.Query()

	rewritten := url.Values{}
	if v := params.Get("limit"); v != "" {
		rewritten.Set("limit", v)
	}
	if v := params.Get("pipeline_stage_id"); v != "" {
		rewritten.Set("stageIds", v)
	}
	if v := params.Get("startAfter"); v != "" {
		rewritten.Set("startAfter", v)
	}
	if v := params.Get("startAfterId"); v != "" {
		rewritten.Set("startAfterId", v)
	}

	return strings.TrimRight(publicURL, "/") + OpportunitiesRoute + "?" + rewritten.Encode()
}
