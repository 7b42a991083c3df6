package tensorwire

import (
	"fmt"

	"github.com/rcrowley/go-metrics"
)

func getOrRegisterHistogram(name string, r metrics.Registry) metrics.Histogram {
	return r.GetOrRegister(name, func() metrics.Histogram {
		return metrics.NewHistogram(metrics.NewExpDecaySample(1028, 0.015))
	}).(metrics.Histogram)
}

func getMetricNameForVariable(name string, varname string) string {
	return fmt.Sprintf(name+"-for-variable-%s", varname)
}

func getOrRegisterVariableMeter(name string, varname string, r metrics.Registry) metrics.Meter {
	return metrics.GetOrRegisterMeter(getMetricNameForVariable(name, varname), r)
}
