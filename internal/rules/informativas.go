package rules

import (
	"context"
	"fmt"

	"github.com/forgo/rotativos/api/internal/model"
)

// Quota basis reported by the new-member rule
const (
	QuotaBasisPromedio = "PROMEDIO_GRUPO"
	QuotaBasisManual   = "AJUSTE_MANUAL"
)

// NewRotacionObligatoriaRule documents that mandatory rotations are assigned
// by administrators. It always passes.
func NewRotacionObligatoriaRule() Rule {
	return define(Rule{
		ID:            RuleRotacionObligatoria,
		Name:          "Rotación obligatoria",
		Description:   "Las rotaciones obligatorias las asigna la administración manualmente.",
		Category:      model.RuleCategoryRotacion,
		Priority:      10,
		Enabled:       true,
		Informational: true,
	}, noDefaults, func(_ context.Context, vc *model.ValidationContext, _ noConfig) (*model.ValidationResult, error) {
		return pass("Asignación manual por la administración", map[string]interface{}{
			"esObligatoria":         vc.RequestType == model.RequestTypeObligatorio,
			"rotativosObligatorios": vc.UserBalance.RotativosObligatorios,
		}), nil
	})
}

// NewCoberturaExternaRule reports where the requester stands against the
// group average; external coverage is arranged by administrators.
func NewCoberturaExternaRule() Rule {
	return define(Rule{
		ID:            RuleCoberturaExterna,
		Name:          "Cobertura externa",
		Description:   "La cobertura externa la gestiona la administración.",
		Category:      model.RuleCategoryRotacion,
		Priority:      11,
		Enabled:       true,
		Informational: true,
	}, noDefaults, func(_ context.Context, vc *model.ValidationContext, _ noConfig) (*model.ValidationResult, error) {
		taken := vc.UserBalance.RotativosTomados
		avg := vc.SeasonData.GroupAverage
		above := float64(taken) > avg

		message := "Por debajo del promedio del grupo"
		if above {
			message = "Por encima del promedio del grupo"
		}
		return pass(message, map[string]interface{}{
			"esCobertura":      vc.RequestType == model.RequestTypeCobertura,
			"rotativosTomados": taken,
			"promedioGrupo":    avg,
			"sobrePromedio":    above,
		}), nil
	})
}

// NewLicenciasRule surfaces rotations credited from leave.
func NewLicenciasRule() Rule {
	return define(Rule{
		ID:            RuleLicencias,
		Name:          "Licencias",
		Description:   "Informa los rotativos acreditados por licencias.",
		Category:      model.RuleCategoryRotacion,
		Priority:      12,
		Enabled:       true,
		Informational: true,
	}, noDefaults, func(_ context.Context, vc *model.ValidationContext, _ noConfig) (*model.ValidationResult, error) {
		credit := vc.UserBalance.RotativosPorLicencia
		return pass(fmt.Sprintf("%d rotativos acreditados por licencia", credit), map[string]interface{}{
			"rotativosPorLicencia": credit,
		}), nil
	})
}

// NewIntegranteNuevoRule reports whether the quota derives from the group
// average or from a manual adjustment.
func NewIntegranteNuevoRule() Rule {
	return define(Rule{
		ID:            RuleIntegranteNuevo,
		Name:          "Integrante nuevo",
		Description:   "Informa la base de cálculo del cupo anual del integrante.",
		Category:      model.RuleCategoryRotacion,
		Priority:      13,
		Enabled:       true,
		Informational: true,
	}, noDefaults, func(_ context.Context, vc *model.ValidationContext, _ noConfig) (*model.ValidationResult, error) {
		basis := QuotaBasisPromedio
		message := "Cupo anual calculado según el promedio del grupo"
		if vc.UserBalance.MaxAjustadoManual != nil {
			basis = QuotaBasisManual
			message = "Cupo anual ajustado manualmente por la administración"
		}

		details := map[string]interface{}{
			"baseCupo":      basis,
			"maxProyectado": vc.UserBalance.MaxProyectado,
			"cupoEfectivo":  vc.UserBalance.Quota(),
		}
		if vc.UserBalance.FechaIngreso != nil {
			details["fechaIngreso"] = vc.UserBalance.FechaIngreso.Format("2006-01-02")
		}
		return pass(message, details), nil
	})
}
