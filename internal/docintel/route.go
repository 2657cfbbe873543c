package docintel

// Route is the wire dialect for copy-related calls: the URL path prefix
// and the api-version query value.
type Route struct {
	PathPrefix string
	APIVersion string
}

var (
	// RouteLegacy is the Form Recognizer surface, used for models built
	// before the Document Intelligence cutover.
	RouteLegacy = Route{PathPrefix: "formrecognizer", APIVersion: "2023-07-31"}

	// RouteCurrent is the Document Intelligence surface.
	RouteCurrent = Route{PathPrefix: "documentintelligence", APIVersion: "2024-11-30"}
)

// RouteFor selects the dialect from a model's recorded build API
// version. Versions at or past the cutover use the current surface;
// everything else, including models with no recorded version, stays on
// the legacy surface. The authorize and copy calls for one model must
// both use the route returned here — the service rejects mixed prefixes.
func RouteFor(apiVersion string) Route {
	if apiVersion != "" && apiVersion >= RouteCurrent.APIVersion {
		return RouteCurrent
	}
	return RouteLegacy
}
