package export

import (
	"github.com/binzume/sceneexport/logger"
	"go.uber.org/zap"
)

const (
	NotifyExportFailed        = "ExportFailed"
	NotifySLXPExportError     = "SLXPExportError"
	NotifySLXPExportWarning   = "SLXPExportWarning"
	NotifySLXPExportSuccess   = "SLXPExportSuccessful"
	NotifyDAEExportSuccess    = "DAEExportSuccess"
	NotifyTextureExportFailed = "TextureExportFailed"
)

// Notifier delivers user-facing messages. Delivery is up to the host.
type Notifier interface {
	Notify(name string, args map[string]string)
}

type NotifierFunc func(name string, args map[string]string)

func (f NotifierFunc) Notify(name string, args map[string]string) {
	f(name, args)
}

// LogNotifier writes notifications to the log.
type LogNotifier struct {
	Log *zap.Logger
}

func (n *LogNotifier) Notify(name string, args map[string]string) {
	log := n.Log
	if log == nil {
		log = logger.Log
	}
	fields := []zap.Field{zap.String("notification", name)}
	for k, v := range args {
		fields = append(fields, zap.String(k, v))
	}
	log.Info("notify", fields...)
}
