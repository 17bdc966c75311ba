package billing

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/jhoicas/facturacr-api/internal/domain"
	"github.com/jhoicas/facturacr-api/internal/domain/repository"
)

// reconcileBatchSize máximo de comprobantes consultados por ciclo.
const reconcileBatchSize = 200

// Reconciler consulta periódicamente los comprobantes enviados que siguen
// sin veredicto. Cada comprobante se procesa de forma aislada: el fallo de
// uno no detiene el ciclo.
type Reconciler struct {
	documentRepo repository.DocumentRepository
	orchestrator *HaciendaOrchestrator
	interval     time.Duration
	log          zerolog.Logger
}

// NewReconciler construye el worker. El intervalo por defecto es 5 minutos.
func NewReconciler(documentRepo repository.DocumentRepository, orchestrator *HaciendaOrchestrator, interval time.Duration, log zerolog.Logger) *Reconciler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Reconciler{
		documentRepo: documentRepo,
		orchestrator: orchestrator,
		interval:     interval,
		log:          log.With().Str("component", "hacienda_reconciler").Logger(),
	}
}

// Run ejecuta el ciclo de conciliación hasta que el contexto se cancele.
// Pensado para correr en su propia goroutine desde main.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.log.Info().Dur("intervalo", r.interval).Msg("conciliador de comprobantes iniciado")
	for {
		select {
		case <-ctx.Done():
			r.log.Info().Msg("conciliador detenido")
			return
		case <-ticker.C:
			r.ReconcileOnce(ctx)
		}
	}
}

// ReconcileOnce consulta un lote de comprobantes pendientes de veredicto.
func (r *Reconciler) ReconcileOnce(ctx context.Context) {
	docs, err := r.documentRepo.ListPendingConsult(reconcileBatchSize)
	if err != nil {
		r.log.Error().Err(err).Msg("no se pudo listar comprobantes pendientes")
		return
	}
	if len(docs) == 0 {
		return
	}
	r.log.Debug().Int("pendientes", len(docs)).Msg("consultando comprobantes enviados")

	for _, doc := range docs {
		if ctx.Err() != nil {
			return
		}
		if err := r.orchestrator.Consult(ctx, doc.ID); err != nil {
			// Un comprobante que llegó a estado terminal entre el listado y
			// la consulta no es un fallo del ciclo.
			if errors.Is(err, domain.ErrConflict) {
				continue
			}
			r.log.Warn().Err(err).Str("doc_id", doc.ID).Str("clave", doc.Clave).Msg("consulta fallida, se reintenta en el próximo ciclo")
		}
	}
}
