package logger

// Component name constants for standardized logging
const (
	ComponentGridController = "GridController"

	// Sync components
	ComponentBatchEngine        = "BatchEngine"
	ComponentReorderCoordinator = "ReorderCoordinator"
	ComponentHistorySink        = "HistorySink"

	// Storage components
	ComponentLayoutStore   = "LayoutStore"
	ComponentSettingsStore = "SettingsStore"

	// Remote catalog
	ComponentCatalogClient = "CatalogClient"
	ComponentMockServer    = "MockServer"
)
