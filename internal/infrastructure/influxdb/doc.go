// Package influxdb writes the per-device signal time series.
//
// When rssi_log is enabled every accepted RSSI observation becomes one
// point in the bluetooth_signal measurement:
//
//	bluetooth_signal,sensor=s1,address=AA:BB:CC:DD:EE:FF,mode=le rssi=-67i,tx_power=-59i,range_meters=0.4
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB, cfg.Sensor.ID)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteSignal(point)
//
// Writes are non-blocking and batched (batch_size, flush_interval). Async
// write failures are delivered to the SetOnError callback.
package influxdb
