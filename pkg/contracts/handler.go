package contracts

import "github.com/julienschmidt/httprouter"

// Handler is anything that can mount its routes on the shared router.
// The app wires each domain handler through this seam so main never
// sees individual route paths.
type Handler interface {
	RegisterRoutes(*httprouter.Router)
}
