package source

import (
	"fmt"

	"go.uber.org/zap"

	"sleepywoodpecker/rp-scan-windows/internal/conf"
	rserial "sleepywoodpecker/rp-scan-windows/internal/rSerial"
)

// Open returns the source selected by settings. For serial sources an empty port
// name picks the first device the host reports.
func Open(settings *conf.Settings, logger *zap.Logger) (Source, error) {
	switch settings.Source.Kind {
	case conf.SourceSim:
		return NewSimulator(settings.Channels, logger), nil

	case conf.SourceSerial:
		portName := settings.Source.Port
		if portName == "" {
			ports, err := rserial.ListPorts()
			if err != nil {
				return nil, fmt.Errorf("listing serial ports: %w", err)
			}
			if len(ports) == 0 {
				return nil, ErrNoDevice
			}
			portName = ports[0]
			logger.Info("[source] found serial devices", zap.Strings("ports", ports), zap.String("selected", portName))
		}

		port, err := rserial.Open(portName, settings.Source.Baud)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoDevice, err)
		}
		return NewSerial(port, portName, logger), nil
	}
	return nil, fmt.Errorf("unknown source kind %q", settings.Source.Kind)
}
