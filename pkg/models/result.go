package models

// ── Tool results ─────────────────────────────────────────────

// ToolResult is the tagged outcome of one dispatched tool call. The loop
// switches on the concrete type; ToolError is the only failure variant.
type ToolResult interface {
	Tool() ToolName
	// Payload shapes the result for the reasoning trail and the planner
	// prompt.
	Payload() map[string]interface{}
}

// ToolError is returned when a collaborator fails or is not configured.
type ToolError struct {
	Name    ToolName
	Message string
}

func (r *ToolError) Tool() ToolName { return r.Name }
func (r *ToolError) Payload() map[string]interface{} {
	return map[string]interface{}{"error": r.Message}
}
func (r *ToolError) Error() string { return string(r.Name) + ": " + r.Message }

type IntentResult struct {
	Intent *Intent
}

func (r *IntentResult) Tool() ToolName { return ToolResolveIntent }
func (r *IntentResult) Payload() map[string]interface{} {
	if r.Intent == nil {
		return map[string]interface{}{}
	}
	return map[string]interface{}{
		"intent_type":             string(r.Intent.IntentType),
		"search_query":            r.Intent.SearchQuery,
		"search_queries":          r.Intent.SearchQueries,
		"experience_name":         r.Intent.ExperienceName,
		"recommended_next_action": r.Intent.RecommendedNextAction,
		"confidence_score":        r.Intent.ConfidenceScore,
	}
}

type ProductsResult struct {
	Query  string
	Result *DiscoveryResult
}

func (r *ProductsResult) Tool() ToolName { return ToolDiscoverProducts }
func (r *ProductsResult) Payload() map[string]interface{} {
	n := 0
	if r.Result != nil {
		n = len(r.Result.Products)
	}
	return map[string]interface{}{"query": r.Query, "product_count": n}
}

// CompositeResult is the output of composite bundle synthesis.
type CompositeResult struct {
	ExperienceName string
	SearchQueries  []string
	Categories     []CategoryProducts
	BundleOptions  []BundleOption
	Engagement     Engagement
}

func (r *CompositeResult) Tool() ToolName { return ToolDiscoverComposite }
func (r *CompositeResult) Payload() map[string]interface{} {
	labels := make([]string, 0, len(r.BundleOptions))
	for _, b := range r.BundleOptions {
		labels = append(labels, b.Label)
	}
	return map[string]interface{}{
		"experience_name": r.ExperienceName,
		"search_queries":  r.SearchQueries,
		"category_count":  len(r.Categories),
		"bundle_labels":   labels,
		"weather_warning": r.Engagement.WeatherWarning,
	}
}

// ProductCount returns the number of products fetched across categories.
func (r *CompositeResult) ProductCount() int {
	n := 0
	for _, c := range r.Categories {
		n += len(c.Products)
	}
	return n
}

type RefineCategoryResult struct {
	BundleID     string
	Category     string
	Alternatives []Product
}

func (r *RefineCategoryResult) Tool() ToolName { return ToolRefineBundleCategory }
func (r *RefineCategoryResult) Payload() map[string]interface{} {
	return map[string]interface{}{
		"bundle_id":         r.BundleID,
		"category":          r.Category,
		"alternative_count": len(r.Alternatives),
	}
}

type OrchestrationResult struct {
	Handle *OrchestrationHandle
}

func (r *OrchestrationResult) Tool() ToolName { return ToolStartOrchestration }
func (r *OrchestrationResult) Payload() map[string]interface{} {
	return map[string]interface{}{
		"instance_id":      r.Handle.InstanceID,
		"status_query_uri": r.Handle.StatusQueryURI,
	}
}

type StandingIntentResult struct {
	StandingIntent *StandingIntent
}

func (r *StandingIntentResult) Tool() ToolName { return ToolCreateStandingIntent }
func (r *StandingIntentResult) Payload() map[string]interface{} {
	return map[string]interface{}{
		"id":     r.StandingIntent.ID,
		"status": r.StandingIntent.Status,
	}
}

type OrderResult struct {
	Order *OrderStatus
}

func (r *OrderResult) Tool() ToolName { return ToolTrackOrder }
func (r *OrderResult) Payload() map[string]interface{} {
	return map[string]interface{}{
		"order_id":       r.Order.OrderID,
		"status":         r.Order.Status,
		"payment_status": r.Order.PaymentStatus,
		"item_count":     len(r.Order.Items),
	}
}

type WebSearchResult struct {
	Query   string
	Results []SearchHit
}

func (r *WebSearchResult) Tool() ToolName { return ToolWebSearch }
func (r *WebSearchResult) Payload() map[string]interface{} {
	return map[string]interface{}{"query": r.Query, "results": r.Results}
}

type WeatherResult struct {
	Location string
	Weather  *Weather
}

func (r *WeatherResult) Tool() ToolName { return ToolGetWeather }
func (r *WeatherResult) Payload() map[string]interface{} {
	return map[string]interface{}{
		"location":    r.Location,
		"description": r.Weather.Description,
		"temp":        r.Weather.Temp,
	}
}

type OccasionsResult struct {
	Location string
	Events   []Occasion
}

func (r *OccasionsResult) Tool() ToolName { return ToolGetUpcomingOccasions }
func (r *OccasionsResult) Payload() map[string]interface{} {
	return map[string]interface{}{"location": r.Location, "events": r.Events}
}

type ManifestResult struct {
	URL      string
	Manifest map[string]interface{}
}

func (r *ManifestResult) Tool() ToolName { return ToolFetchUCPManifest }
func (r *ManifestResult) Payload() map[string]interface{} {
	return map[string]interface{}{"url": r.URL, "manifest": r.Manifest}
}

// CompleteResult terminates the loop.
type CompleteResult struct {
	Summary string
}

func (r *CompleteResult) Tool() ToolName { return ToolComplete }
func (r *CompleteResult) Payload() map[string]interface{} {
	return map[string]interface{}{"status": "complete", "summary": r.Summary}
}
