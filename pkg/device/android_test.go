package device

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whiteswan/mobile-e2e/pkg/driver/mock"
)

const devicesOutput = `List of devices attached
* daemon started successfully
R58M12ABCDE	unauthorized
emulator-5554	device
emulator-5556	device

`

func TestADB_ListDevices(t *testing.T) {
	r := mock.NewRunner().On("adb devices", devicesOutput, nil)
	entries, err := ADB{Runner: r}.ListDevices(context.Background())
	require.NoError(t, err)

	require.Len(t, entries, 3)
	assert.Equal(t, Entry{Serial: "R58M12ABCDE", State: "unauthorized"}, entries[0])
	assert.Equal(t, Entry{Serial: "emulator-5554", State: "device"}, entries[1])
}

func TestADB_ResolveSerial(t *testing.T) {
	r := mock.NewRunner().On("adb devices", devicesOutput, nil)
	a := ADB{Runner: r}

	assert.Equal(t, "emulator-5554", a.ResolveSerial(context.Background(), ""))
	assert.Equal(t, "R58M-override", a.ResolveSerial(context.Background(), "R58M-override"))
	assert.Len(t, r.Matching("adb devices"), 1, "override must not query adb")
}

func TestADB_ResolveSerialNoDevices(t *testing.T) {
	r := mock.NewRunner().On("adb devices", "List of devices attached\n\n", nil)
	a := ADB{Runner: r}

	assert.Equal(t, "", a.ResolveSerial(context.Background(), ""))

	_, err := a.RequireDevice(context.Background(), "")
	var noDev *NoDevicesError
	require.True(t, errors.As(err, &noDev))
	assert.Contains(t, err.Error(), "Options:")
}

func TestADB_ResolveSerialAdbMissing(t *testing.T) {
	r := mock.NewRunner().On("adb devices", "", errors.New("executable file not found"))
	assert.Equal(t, "", ADB{Runner: r}.ResolveSerial(context.Background(), ""))
}

func TestAndroidDevice_CommandsScopedToSerial(t *testing.T) {
	r := mock.NewRunner().On("adb -s emulator-5554 shell pm clear", "Success\n", nil)
	d := ADB{Runner: r}.Device(context.Background(), "emulator-5554")

	ctx := context.Background()
	require.NoError(t, d.ForceStop(ctx, "com.fin.whiteswan"))
	require.NoError(t, d.ClearData(ctx, "com.fin.whiteswan"))
	require.NoError(t, d.StartActivity(ctx, "com.fin.whiteswan/com.fin.whiteswan.MainActivity"))

	assert.Equal(t, []string{
		"adb -s emulator-5554 shell am force-stop com.fin.whiteswan",
		"adb -s emulator-5554 shell pm clear com.fin.whiteswan",
		"adb -s emulator-5554 shell am start -n com.fin.whiteswan/com.fin.whiteswan.MainActivity",
	}, r.Commands())
}

func TestAndroidDevice_NoSerialOmitsFlag(t *testing.T) {
	r := mock.NewRunner()
	d := New("", r)
	require.NoError(t, d.ClearLogcat(context.Background()))
	assert.Equal(t, []string{"adb shell logcat -c"}, r.Commands())
}

func TestAndroidDevice_ClearDataFailure(t *testing.T) {
	r := mock.NewRunner().On("adb -s X shell pm clear", "Failed\n", nil)
	err := New("X", r).ClearData(context.Background(), "com.fin.whiteswan")
	assert.Error(t, err)
}

func TestAndroidDevice_StartActivityErrorOutput(t *testing.T) {
	r := mock.NewRunner().On("adb -s X shell am start",
		"Starting: Intent { cmp=com.fin.whiteswan/.Nope }\nError type 3\nError: Activity class {com.fin.whiteswan/.Nope} does not exist.\n", nil)
	err := New("X", r).StartActivity(context.Background(), "com.fin.whiteswan/.Nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestAndroidDevice_CommandError(t *testing.T) {
	r := mock.NewRunner().On("adb -s X shell am force-stop", "", errors.New("device offline"))
	err := New("X", r).ForceStop(context.Background(), "com.fin.whiteswan")
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "adb shell am force-stop com.fin.whiteswan"))
}

func TestAndroidDevice_StripsANSI(t *testing.T) {
	r := mock.NewRunner().On("adb -s X shell logcat", "\x1b[31mE AndroidRuntime: FATAL\x1b[0m\n", nil)
	out, err := New("X", r).Logcat(context.Background(), 500, "4242")
	require.NoError(t, err)
	assert.Equal(t, "E AndroidRuntime: FATAL\n", out)
	assert.Equal(t, []string{"adb -s X shell logcat -d -t 500 --pid=4242"}, r.Commands())
}

func TestAndroidDevice_Pidof(t *testing.T) {
	r := mock.NewRunner().On("adb -s X shell pidof", "12345\n", nil)
	pid, err := New("X", r).Pidof(context.Background(), "com.fin.whiteswan")
	require.NoError(t, err)
	assert.Equal(t, "12345", pid)
}

func TestAndroidDevice_BatteryLevel(t *testing.T) {
	r := mock.NewRunner().On("adb -s X shell dumpsys battery",
		"Current Battery Service state:\n  AC powered: true\n  level: 87\n  scale: 100\n", nil)
	level, err := New("X", r).BatteryLevel(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "87%", level)
}

func TestAndroidDevice_IsInstalled(t *testing.T) {
	r := mock.NewRunner().On("adb -s X shell pm list packages",
		"package:com.fin.whiteswan.dev\npackage:com.fin.whiteswan\n", nil)
	d := New("X", r)
	assert.True(t, d.IsInstalled(context.Background(), "com.fin.whiteswan"))
	assert.False(t, d.IsInstalled(context.Background(), "com.fin"))
}

func TestAndroidDevice_Info(t *testing.T) {
	r := mock.NewRunner().
		On("adb -s emulator-5554 shell getprop ro.product.model", "sdk_gphone64_x86_64\n", nil).
		On("adb -s emulator-5554 shell getprop ro.build.version.release", "14\n", nil).
		On("adb -s emulator-5554 shell getprop ro.kernel.qemu", "1\n", nil)

	info, err := New("emulator-5554", r).Info(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sdk_gphone64_x86_64", info.Model)
	assert.Equal(t, "14", info.Release)
	assert.True(t, info.IsEmulator)
}

func TestAndroidDevice_InfoReportsPropertyErrors(t *testing.T) {
	r := mock.NewRunner().
		On("adb -s R58M shell getprop ro.product.model", "", errors.New("device offline")).
		On("adb -s R58M shell getprop ro.build.version.release", "13\n", nil)

	info, err := New("R58M", r).Info(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ro.product.model")
	assert.Empty(t, info.Model)
	assert.Equal(t, "13", info.Release)
	assert.False(t, info.IsEmulator)
}
